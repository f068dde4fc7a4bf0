package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"videosync/internal/playback"
	"videosync/models"
	"videosync/utils"
)

// Play starts or resumes playback from the current playhead.
func (a *API) Play(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	var state playbackView
	s.WithLock(func(tl *models.Timeline, ps *models.PlaybackState, ctrl *playback.Controller) {
		ctrl.Play()
		state = viewOf(ps, ctrl)
	})
	return utils.RespondWithJSON(c, fiber.StatusOK, state)
}

// Pause freezes playback, keeping the playhead where it is.
func (a *API) Pause(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	var state playbackView
	s.WithLock(func(tl *models.Timeline, ps *models.PlaybackState, ctrl *playback.Controller) {
		ctrl.Pause()
		state = viewOf(ps, ctrl)
	})
	return utils.RespondWithJSON(c, fiber.StatusOK, state)
}

// SeekRequest defines the body for moving the playhead.
type SeekRequest struct {
	Time float64 `json:"time" validate:"gte=0"`
}

// Seek moves the playhead. Rapid seeks while paused are debounced to the
// latest position.
func (a *API) Seek(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	req := new(SeekRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse seek JSON: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	var state playbackView
	s.WithLock(func(tl *models.Timeline, ps *models.PlaybackState, ctrl *playback.Controller) {
		ctrl.Seek(req.Time)
		state = viewOf(ps, ctrl)
	})
	return utils.RespondWithJSON(c, fiber.StatusOK, state)
}

// VolumeRequest defines the body for the global volume control.
type VolumeRequest struct {
	Volume float64 `json:"volume" validate:"gte=0,lte=1"`
}

// SetVolume adjusts the session-wide output volume.
func (a *API) SetVolume(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	req := new(VolumeRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse volume JSON: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	var state playbackView
	s.WithLock(func(tl *models.Timeline, ps *models.PlaybackState, ctrl *playback.Controller) {
		ps.SetGlobalVolume(req.Volume)
		state = viewOf(ps, ctrl)
	})
	return utils.RespondWithJSON(c, fiber.StatusOK, state)
}

// GetPlaybackState returns the playhead, transport state and the current mix
// decision.
func (a *API) GetPlaybackState(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	mix := s.Tick()
	var state playbackView
	s.WithLock(func(tl *models.Timeline, ps *models.PlaybackState, ctrl *playback.Controller) {
		state = viewOf(ps, ctrl)
	})
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"playback": state,
		"mix":      mix,
	})
}

// AdvanceRequest defines the body for the render-clock advance endpoint.
type AdvanceRequest struct {
	Delta float64 `json:"delta" validate:"gt=0"`
}

// Advance moves the playhead by a rendered-media delta and runs the
// housekeeping tick. Drives playback when the caller owns the render clock.
func (a *API) Advance(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	req := new(AdvanceRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse advance JSON: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	s.Advance(req.Delta)
	mix := s.Tick()
	var state playbackView
	s.WithLock(func(tl *models.Timeline, ps *models.PlaybackState, ctrl *playback.Controller) {
		state = viewOf(ps, ctrl)
	})
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"playback": state,
		"mix":      mix,
	})
}

type playbackView struct {
	CurrentTime  float64 `json:"current_time"`
	IsPlaying    bool    `json:"is_playing"`
	State        string  `json:"state"`
	ActiveClipID string  `json:"active_clip_id,omitempty"`
	GlobalVolume float64 `json:"global_volume"`
}

func viewOf(ps *models.PlaybackState, ctrl *playback.Controller) playbackView {
	v := playbackView{
		CurrentTime:  ps.CurrentTime(),
		IsPlaying:    ps.IsPlaying(),
		State:        string(ctrl.State()),
		GlobalVolume: ps.GlobalVolume(),
	}
	if id := ctrl.ActiveClipID(); id != uuid.Nil {
		v.ActiveClipID = id.String()
	}
	return v
}
