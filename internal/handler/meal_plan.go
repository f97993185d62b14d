package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/diabyte/internal/auth"
	"github.com/dukerupert/diabyte/internal/mealplan"
	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/websocket"
)

type MealPlanHandler struct {
	svc    *mealplan.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewMealPlanHandler(svc *mealplan.Service, hub *websocket.Hub, logger *slog.Logger) *MealPlanHandler {
	return &MealPlanHandler{svc: svc, hub: hub, logger: logger}
}

func (h *MealPlanHandler) broadcast(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(userID, msg)
	}
}

// Day returns the plan for {date} with per-block carb totals.
func (h *MealPlanHandler) Day(w http.ResponseWriter, r *http.Request) {
	date, err := mealplan.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, h.logger, "get meal plan", err)
		return
	}

	view, err := h.svc.Day(auth.UserID(r.Context()), date)
	if err != nil {
		writeError(w, h.logger, "get meal plan", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *MealPlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	date, err := mealplan.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, h.logger, "delete meal plan", err)
		return
	}

	userID := auth.UserID(r.Context())
	if err := h.svc.DeletePlan(userID, date); err != nil {
		writeError(w, h.logger, "delete meal plan", err)
		return
	}
	h.broadcast(userID, websocket.NewMessage("meal_plan", "deleted", 0, map[string]any{"date": r.PathValue("date")}))
	w.WriteHeader(http.StatusNoContent)
}

type mealItemRequest struct {
	Block      model.Block      `json:"block"`
	SourceType model.SourceType `json:"source_type"`
	SourceID   int64            `json:"source_id"`
	Grams      float64          `json:"grams"`
}

func (h *MealPlanHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	date, err := mealplan.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, h.logger, "add meal item", err)
		return
	}

	var req mealItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SourceType == "" {
		req.SourceType = model.SourceFood
	}

	userID := auth.UserID(r.Context())
	item, err := h.svc.AddItem(userID, date, req.Block, req.SourceType, req.SourceID, req.Grams)
	if err != nil {
		writeError(w, h.logger, "add meal item", err)
		return
	}
	h.broadcast(userID, websocket.NewMessage("meal_item", "created", item.ID, map[string]any{"plan_id": item.PlanID}))
	writeJSON(w, http.StatusCreated, item)
}

type gramsRequest struct {
	Grams float64 `json:"grams"`
}

func (h *MealPlanHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	planID, itemID, ok := parsePlanItem(w, r)
	if !ok {
		return
	}

	var req gramsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := auth.UserID(r.Context())
	item, err := h.svc.UpdateItemGrams(userID, planID, itemID, req.Grams)
	if err != nil {
		writeError(w, h.logger, "update meal item", err)
		return
	}
	h.broadcast(userID, websocket.NewMessage("meal_item", "updated", item.ID, map[string]any{"plan_id": planID}))
	writeJSON(w, http.StatusOK, item)
}

func (h *MealPlanHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	planID, itemID, ok := parsePlanItem(w, r)
	if !ok {
		return
	}

	userID := auth.UserID(r.Context())
	if err := h.svc.RemoveItem(userID, planID, itemID); err != nil {
		writeError(w, h.logger, "remove meal item", err)
		return
	}
	h.broadcast(userID, websocket.NewMessage("meal_item", "deleted", itemID, map[string]any{"plan_id": planID}))
	w.WriteHeader(http.StatusNoContent)
}

func parsePlanItem(w http.ResponseWriter, r *http.Request) (planID, itemID int64, ok bool) {
	planID, err := parseInt64Param(r, "plan_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid plan id"})
		return 0, 0, false
	}
	itemID, err = parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, 0, false
	}
	return planID, itemID, true
}
