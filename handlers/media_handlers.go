package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"videosync/internal/jobs"
	"videosync/internal/playback"
	"videosync/models"
	"videosync/utils"
)

// ImportClipRequest defines the body for placing a new clip on the timeline.
// The clip starts in probing state; its duration arrives asynchronously.
type ImportClipRequest struct {
	SourcePath    string  `json:"source_path" validate:"required"`
	TimelineStart float64 `json:"timeline_start" validate:"gte=0"`
	Order         int     `json:"order" validate:"gte=0"`
}

// ImportClip adds a clip and queues the media probe.
func (a *API) ImportClip(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}

	req := new(ImportClipRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse clip JSON: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	now := time.Now()
	cl := &models.Clip{
		ID:            uuid.New(),
		SessionID:     s.ID,
		SourcePath:    req.SourcePath,
		Order:         req.Order,
		TimelineStart: req.TimelineStart,
		TimelineEnd:   req.TimelineStart,
		Status:        models.ClipStatusProbing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, ctrl *playback.Controller) {
		tl.AddClip(cl)
		ctrl.Media().BeginLoad(cl.ID)
	})

	job := &jobs.ProbeClipJob{
		JobID:     uuid.NewString(),
		SessionID: s.ID,
		ClipID:    cl.ID,
		Path:      req.SourcePath,
		Registry:  a.Registry,
		Log:       a.Log,
	}
	if !a.Dispatcher.Submit(job) {
		a.Log.WithField("clip_id", cl.ID).Warn("Probe queue full, clip stays in probing state")
	}

	return utils.RespondWithJSON(c, fiber.StatusCreated, cl)
}

// DeleteClip removes a clip from the timeline.
func (a *API) DeleteClip(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	clipID, err := uuid.Parse(c.Params("clipId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid clip id")
	}

	removed := false
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, ctrl *playback.Controller) {
		removed = tl.RemoveClip(clipID)
		if removed {
			ctrl.NotifyMutation()
		}
	})
	if !removed {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Clip not found")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"clip_id": clipID})
}

// AddSegmentRequest defines the body for adding a narration segment. When
// parent_clip_id is set, start and end are relative to that clip.
type AddSegmentRequest struct {
	ParentClipID           *uuid.UUID `json:"parent_clip_id,omitempty"`
	StartTime              float64    `json:"start_time" validate:"gte=0"`
	EndTime                float64    `json:"end_time" validate:"gtfield=StartTime"`
	AudioPath              string     `json:"audio_path" validate:"required"`
	AudioOffset            float64    `json:"audio_offset" validate:"gte=0"`
	EstimatedAudioDuration float64    `json:"estimated_audio_duration" validate:"gt=0"`
}

// AddSegment places a narration segment, rejecting overlaps within its lane.
func (a *API) AddSegment(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}

	req := new(AddSegmentRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse segment JSON: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	now := time.Now()
	seg := &models.Segment{
		ID:                     uuid.New(),
		SessionID:              s.ID,
		ParentClipID:           req.ParentClipID,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		AudioPath:              req.AudioPath,
		AudioOffset:            req.AudioOffset,
		EstimatedAudioDuration: req.EstimatedAudioDuration,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	var conflict *models.Segment
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		if req.ParentClipID != nil && tl.FindClip(*req.ParentClipID) == nil {
			// Orphaned binding: treat as a generic segment.
			seg.ParentClipID = nil
		}
		for _, other := range tl.Segments {
			if !other.SameLane(seg) {
				continue
			}
			// Same lane means same coordinate space, so raw times compare.
			if other.OverlapsRange(seg.StartTime, seg.EndTime) {
				conflict = other
				return
			}
		}
		tl.AddSegment(seg)
	})
	if conflict != nil {
		return utils.RespondWithError(c, fiber.StatusConflict, fmt.Sprintf("Segment overlaps existing segment %s", conflict.ID))
	}
	return utils.RespondWithJSON(c, fiber.StatusCreated, seg)
}

// DeleteSegment removes a narration segment.
func (a *API) DeleteSegment(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	segID, err := uuid.Parse(c.Params("segmentId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid segment id")
	}

	removed := false
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		removed = tl.RemoveSegment(segID)
	})
	if !removed {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Segment not found")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"segment_id": segID})
}

// AddBGMRequest defines the body for adding a background-music track.
// end_time 0 means the track runs until the end of the timeline.
type AddBGMRequest struct {
	Path      string  `json:"path" validate:"required"`
	StartTime float64 `json:"start_time" validate:"gte=0"`
	EndTime   float64 `json:"end_time" validate:"gte=0"`
	Volume    int     `json:"volume" validate:"gte=0,lte=200"`
	Loop      bool    `json:"loop"`
	FadeIn    float64 `json:"fade_in" validate:"gte=0"`
	FadeOut   float64 `json:"fade_out" validate:"gte=0"`
}

// AddBGMTrack places a BGM track and queues the audio probe.
func (a *API) AddBGMTrack(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}

	req := new(AddBGMRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse BGM JSON: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	now := time.Now()
	track := &models.BGMTrack{
		ID:        uuid.New(),
		SessionID: s.ID,
		Path:      req.Path,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Loop:      req.Loop,
		FadeIn:    req.FadeIn,
		FadeOut:   req.FadeOut,
		CreatedAt: now,
		UpdatedAt: now,
	}
	track.SetVolume(req.Volume)

	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		tl.AddBGMTrack(track)
	})

	job := &jobs.ProbeBGMJob{
		JobID:     uuid.NewString(),
		SessionID: s.ID,
		TrackID:   track.ID,
		Path:      req.Path,
		Registry:  a.Registry,
		Log:       a.Log,
	}
	if !a.Dispatcher.Submit(job) {
		a.Log.WithField("track_id", track.ID).Warn("Probe queue full, BGM track stays pending")
	}

	return utils.RespondWithJSON(c, fiber.StatusCreated, track)
}

// DeleteBGMTrack removes a BGM track.
func (a *API) DeleteBGMTrack(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	trackID, err := uuid.Parse(c.Params("trackId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid track id")
	}

	removed := false
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		removed = tl.RemoveBGMTrack(trackID)
	})
	if !removed {
		return utils.RespondWithError(c, fiber.StatusNotFound, "BGM track not found")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"track_id": trackID})
}

// ApplyUpdate applies a typed timeline update and broadcasts it to
// collaborators. This is the non-interactive edit path; drags go through the
// gesture endpoints.
func (a *API) ApplyUpdate(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}

	var update models.TimelineUpdate
	if err := c.BodyParser(&update); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse update JSON: %v", err))
	}
	update.SessionID = s.ID

	if err := s.Apply(update); err != nil {
		return utils.RespondWithError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("Update rejected: %v", err))
	}
	a.Hub.Broadcast(update, update.Origin)
	return utils.RespondWithJSON(c, fiber.StatusOK, update)
}
