package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/diabyte/internal/auth"
	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/profile"
	"github.com/dukerupert/diabyte/internal/websocket"
)

type ProfileHandler struct {
	svc    *profile.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewProfileHandler(svc *profile.Service, hub *websocket.Hub, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{svc: svc, hub: hub, logger: logger}
}

func (h *ProfileHandler) broadcast(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(userID, msg)
	}
}

// Get returns the profile, or null when dosing is not configured.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req model.DosingProfile
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := auth.UserID(r.Context())
	p, err := h.svc.Put(userID, req)
	if err != nil {
		writeError(w, h.logger, "put profile", err)
		return
	}
	h.broadcast(userID, websocket.NewMessage("profile", "updated", userID, nil))
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if err := h.svc.Delete(userID); err != nil {
		writeError(w, h.logger, "delete profile", err)
		return
	}
	h.broadcast(userID, websocket.NewMessage("profile", "deleted", userID, nil))
	w.WriteHeader(http.StatusNoContent)
}
