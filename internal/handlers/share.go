package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mallucodewizard/videoverse/internal/apperr"
)

type shareRequest struct {
	ExpirySeconds int64 `json:"expirySeconds"`
}

// ShareVideo issues a time-bound share link for a video.
// POST /api/videos/{id}/share
func (h *Handlers) ShareVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req shareRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "invalid share request body"))
		return
	}

	result, err := h.svc.Share(r.Context(), id, time.Duration(req.ExpirySeconds)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, result)
}

// AccessShared redeems a share token and returns the playback URL it
// grants. No authentication is required on this route.
// GET /share/{token}
func (h *Handlers) AccessShared(w http.ResponseWriter, r *http.Request) {
	tokenString := mux.Vars(r)["token"]

	result, err := h.svc.Access(r.Context(), tokenString)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, result)
}
