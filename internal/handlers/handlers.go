// Package handlers implements the HTTP surface of the service.
package handlers

import (
	"net/http"
	"time"

	"github.com/mallucodewizard/videoverse/internal/apperr"
	"github.com/mallucodewizard/videoverse/internal/database"
	"github.com/mallucodewizard/videoverse/internal/logging"
	"github.com/mallucodewizard/videoverse/internal/service"
	"github.com/mallucodewizard/videoverse/internal/startup"
)

// Handlers bundles the service dependencies for the HTTP endpoints.
type Handlers struct {
	svc       *service.Service
	store     service.Store
	db        *database.Database // nil in tests that fake the store
	cfg       *startup.Config
	startTime time.Time
}

// New creates the HTTP handler set.
func New(svc *service.Service, store service.Store, db *database.Database, cfg *startup.Config) *Handlers {
	return &Handlers{
		svc:       svc,
		store:     store,
		db:        db,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// statusForKind maps an error kind to its HTTP status code.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput, apperr.KindPolicyViolation,
		apperr.KindTokenExpired, apperr.KindTokenTampered:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindTranscode:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates any error into the JSON error payload for its
// kind. Unclassified errors are logged and reported generically so no raw
// internal fault reaches a caller.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)

	msg := err.Error()
	if kind == apperr.KindInternal {
		logging.Error("internal error: %v", err)
		msg = "internal server error"
	} else if status == http.StatusInternalServerError {
		logging.Error("%s: %v", kind, err)
	}

	writeJSONError(w, msg, status)
}
