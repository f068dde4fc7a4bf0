package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"videosync/internal/editing"
	"videosync/utils"
)

// BeginDragRequest defines the body for starting an interactive gesture.
type BeginDragRequest struct {
	TargetKind   string  `json:"target_kind" validate:"required,oneof=clip segment bgm"`
	TargetID     string  `json:"target_id" validate:"required,uuid"`
	Mode         string  `json:"mode" validate:"required,oneof=move resize_start resize_end"`
	PointerX     float64 `json:"pointer_x"`
	PointerY     float64 `json:"pointer_y"`
	TrackWidthPx float64 `json:"track_width_px" validate:"gt=0"`
	Zoom         float64 `json:"zoom" validate:"gt=0"`
	Duration     float64 `json:"duration" validate:"gt=0"`
}

// MoveDragRequest defines the body for advancing a gesture.
type MoveDragRequest struct {
	PointerX float64 `json:"pointer_x"`
	PointerY float64 `json:"pointer_y"`
}

// BeginDrag starts a drag or resize gesture on a timeline element.
func (a *API) BeginDrag(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	req := new(BeginDragRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse drag JSON: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	targetID, _ := uuid.Parse(req.TargetID)
	kind, mode := parseTarget(req.TargetKind), parseMode(req.Mode)
	vp := editing.Viewport{
		TrackWidthPx: req.TrackWidthPx,
		Zoom:         req.Zoom,
		Duration:     req.Duration,
	}
	origin := editing.PointerEvent{X: req.PointerX, Y: req.PointerY}

	if err := s.BeginDrag(kind, targetID, mode, vp, origin); err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, fmt.Sprintf("Cannot start drag: %v", err))
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"target_id": targetID})
}

// MoveDrag advances the live gesture and returns the preview geometry plus
// any snap indicator for rendering.
func (a *API) MoveDrag(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	req := new(MoveDragRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse drag JSON: %v", err))
	}

	geo, snap, err := s.MoveDrag(editing.PointerEvent{X: req.PointerX, Y: req.PointerY})
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusConflict, err.Error())
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"geometry": geo,
		"snap":     snap,
	})
}

// CommitDrag finalizes the gesture, applies it to the timeline and broadcasts
// the resulting update. A plain click commits nothing.
func (a *API) CommitDrag(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}

	update, err := s.CommitDrag()
	if err != nil {
		var verr *editing.ValidationError
		if errors.As(err, &verr) {
			return utils.RespondWithError(c, fiber.StatusConflict, verr.Reason)
		}
		return utils.RespondWithError(c, fiber.StatusConflict, err.Error())
	}
	if update == nil {
		return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"committed": false})
	}

	a.Hub.Broadcast(*update, update.Origin)
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"committed": true,
		"update":    update,
	})
}

// CancelDrag abandons the gesture, reverting the element to its committed
// geometry.
func (a *API) CancelDrag(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	s.CancelDrag()
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"cancelled": true})
}

func parseTarget(kind string) editing.TargetKind {
	switch kind {
	case "segment":
		return editing.TargetSegment
	case "bgm":
		return editing.TargetBGM
	default:
		return editing.TargetClip
	}
}

func parseMode(mode string) editing.DragMode {
	switch mode {
	case "resize_start":
		return editing.ResizeStart
	case "resize_end":
		return editing.ResizeEnd
	default:
		return editing.Move
	}
}
