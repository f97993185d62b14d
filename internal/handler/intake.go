package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/diabyte/internal/auth"
	"github.com/dukerupert/diabyte/internal/intake"
	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/websocket"
)

type IntakeHandler struct {
	svc    *intake.Service
	hub    *websocket.Hub
	logger *slog.Logger
	now    func() time.Time
}

func NewIntakeHandler(svc *intake.Service, hub *websocket.Hub, logger *slog.Logger) *IntakeHandler {
	return &IntakeHandler{svc: svc, hub: hub, logger: logger, now: time.Now}
}

func (h *IntakeHandler) broadcast(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(userID, msg)
	}
}

type calcRequest struct {
	FoodID int64    `json:"food_id"`
	Grams  float64  `json:"grams"`
	PreBG  *float64 `json:"pre_bg"`
}

// Calculate suggests a dose without recording anything.
func (h *IntakeHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req calcRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	calc, err := h.svc.Calculate(auth.UserID(r.Context()), req.FoodID, req.Grams, req.PreBG)
	if err != nil {
		writeError(w, h.logger, "calculate dose", err)
		return
	}
	writeJSON(w, http.StatusOK, calc)
}

func (h *IntakeHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req intake.SaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := auth.UserID(r.Context())
	rec, err := h.svc.Save(userID, req)
	if err != nil {
		writeError(w, h.logger, "save intake", err)
		return
	}

	h.logger.Debug("intake saved", "user_id", userID, "intake_id", rec.ID, "carbs_g", rec.CarbsGrams)
	h.broadcast(userID, websocket.NewMessage("intake", "created", rec.ID, nil))
	writeJSON(w, http.StatusCreated, rec)
}

// History lists recent entries; ?limit= overrides the configured page size.
func (h *IntakeHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, "list intakes", err)
		return
	}

	records, err := h.svc.History(auth.UserID(r.Context()), limit)
	if err != nil {
		writeError(w, h.logger, "list intakes", err)
		return
	}
	if records == nil {
		records = []model.IntakeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type postBGRequest struct {
	PostBG *float64 `json:"post_bg"`
}

func (h *IntakeHandler) AttachPostBG(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req postBGRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PostBG == nil {
		writeError(w, h.logger, "attach post bg", fmt.Errorf("%w: post_bg is required", model.ErrInvalidInput))
		return
	}

	userID := auth.UserID(r.Context())
	rec, err := h.svc.AttachPostBG(userID, id, *req.PostBG)
	if err != nil {
		writeError(w, h.logger, "attach post bg", err)
		return
	}
	h.broadcast(userID, websocket.NewMessage("intake", "updated", rec.ID, nil))
	writeJSON(w, http.StatusOK, rec)
}

// Summary reports today's totals for the dashboard.
func (h *IntakeHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Today(auth.UserID(r.Context()), h.now())
	if err != nil {
		writeError(w, h.logger, "summarize intakes", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
