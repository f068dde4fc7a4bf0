package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"videosync/internal/session"
	"videosync/utils"
)

// CreateSessionRequest defines the body for creating an editing session.
type CreateSessionRequest struct {
	Name string `json:"name" validate:"required"`
}

type sessionSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func summarize(s *session.Session) sessionSummary {
	return sessionSummary{
		ID:        s.ID.String(),
		Name:      s.Name,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateSession starts a new empty editing session.
func (a *API) CreateSession(c *fiber.Ctx) error {
	req := new(CreateSessionRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Cannot parse session JSON: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	s := a.Registry.Create(req.Name)
	if a.RemoteHubURL != "" {
		if err := s.JoinRemoteHub(a.RemoteHubURL); err != nil {
			a.Log.WithError(err).WithField("session_id", s.ID).Warn("Could not join remote hub")
		}
	}
	a.Log.WithField("session_id", s.ID).Info("Session created")
	return utils.RespondWithJSON(c, fiber.StatusCreated, summarize(s))
}

// ListSessions returns the live sessions.
func (a *API) ListSessions(c *fiber.Ctx) error {
	sessions := a.Registry.List()
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, out)
}

// GetSession returns the session's full timeline document.
func (a *API) GetSession(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, s.Snapshot())
}

// SaveSession persists the session's timeline snapshot.
func (a *API) SaveSession(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	if err := a.Store.Save(s.Snapshot()); err != nil {
		return utils.RespondWithError(c, fiber.StatusInternalServerError, fmt.Sprintf("Failed to save session: %v", err))
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"session_id": s.ID})
}

// RestoreSession loads a persisted snapshot back into a live session.
func (a *API) RestoreSession(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	tl, err := a.Store.Load(id)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusInternalServerError, fmt.Sprintf("Failed to load snapshot: %v", err))
	}
	if tl == nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "No snapshot for session")
	}

	s := session.Restore(id, tl.Name, tl, a.Log)
	a.Registry.Put(s)
	a.Log.WithField("session_id", id).Info("Session restored from snapshot")
	return utils.RespondWithJSON(c, fiber.StatusOK, summarize(s))
}

// DeleteSession drops a session and its persisted snapshot.
func (a *API) DeleteSession(c *fiber.Ctx) error {
	s, ok := a.sessionFromParam(c)
	if !ok {
		return nil
	}
	a.Registry.Remove(s.ID)
	if err := a.Store.Delete(s.ID); err != nil {
		a.Log.WithFields(map[string]interface{}{
			"session_id": s.ID, "error": err.Error(),
		}).Warn("Failed to delete persisted snapshot")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"session_id": s.ID})
}

// sessionFromParam resolves the :sessionId path parameter. On failure the
// error response has already been written and ok is false.
func (a *API) sessionFromParam(c *fiber.Ctx) (*session.Session, bool) {
	id, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid session id")
		return nil, false
	}
	s, ok := a.Registry.Get(id)
	if !ok {
		utils.RespondWithError(c, fiber.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}
