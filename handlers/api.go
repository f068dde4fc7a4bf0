// Package handlers exposes the editing engine over HTTP. Every response uses
// the status/message/data envelope.
package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"videosync/internal/collab"
	"videosync/internal/session"
	"videosync/internal/store"
	"videosync/internal/worker"
)

var validate = validator.New()

// API bundles the dependencies the HTTP surface needs.
type API struct {
	Registry   *session.Registry
	Dispatcher *worker.Dispatcher
	Store      *store.SnapshotStore
	Hub        *collab.Hub
	Log        *logrus.Logger

	// RemoteHubURL, when set, makes every new session mirror into an
	// upstream collaboration hub hosted by another process.
	RemoteHubURL string
}

// ErrorResponse is the common error envelope.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
