package handler

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/dukerupert/diabyte/internal/auth"
	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/store"
)

const maxCarbsPer100 = 100

var validUnits = map[string]bool{
	"g":  true,
	"ml": true,
}

type FoodHandler struct {
	foodStore *store.FoodStore
	logger    *slog.Logger
}

func NewFoodHandler(fs *store.FoodStore, logger *slog.Logger) *FoodHandler {
	return &FoodHandler{foodStore: fs, logger: logger}
}

type foodRequest struct {
	Name          string  `json:"name"`
	CarbsPer100   float64 `json:"carbs_per_100"`
	Unit          string  `json:"unit"`
	GlycemicIndex *int    `json:"glycemic_index"`
}

func (req *foodRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", model.ErrInvalidInput)
	}
	if math.IsNaN(req.CarbsPer100) || req.CarbsPer100 < 0 || req.CarbsPer100 > maxCarbsPer100 {
		return fmt.Errorf("%w: carbs_per_100 must be between 0 and %d", model.ErrInvalidInput, maxCarbsPer100)
	}
	if req.Unit == "" {
		req.Unit = "g"
	}
	if !validUnits[req.Unit] {
		return fmt.Errorf("%w: unit must be g or ml", model.ErrInvalidInput)
	}
	if gi := req.GlycemicIndex; gi != nil && (*gi < 0 || *gi > 120) {
		return fmt.Errorf("%w: glycemic_index must be between 0 and 120", model.ErrInvalidInput)
	}
	return nil
}

// List searches the catalog: ?q= filters by name, ?limit= and ?offset= page.
func (h *FoodHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, "search foods", err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.logger, "search foods", err)
		return
	}

	foods, err := h.foodStore.Search(q, limit, offset)
	if err != nil {
		writeError(w, h.logger, "search foods", err)
		return
	}
	total, err := h.foodStore.Count(q)
	if err != nil {
		writeError(w, h.logger, "count foods", err)
		return
	}
	if foods == nil {
		foods = []model.Food{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"foods": foods,
		"total": total,
	})
}

func (h *FoodHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	food, err := h.foodStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get food", err)
		return
	}
	if food == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "food not found"})
		return
	}
	writeJSON(w, http.StatusOK, food)
}

func (h *FoodHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req foodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, "create food", err)
		return
	}

	userID := auth.UserID(r.Context())
	food, err := h.foodStore.Create(req.Name, req.CarbsPer100, req.GlycemicIndex, req.Unit, &userID)
	if err != nil {
		writeError(w, h.logger, "create food", err)
		return
	}
	writeJSON(w, http.StatusCreated, food)
}

// Upsert inserts a food or replaces the carbs and glycemic index of the one
// with the same name.
func (h *FoodHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req foodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, "upsert food", err)
		return
	}

	food, err := h.foodStore.Upsert(req.Name, req.CarbsPer100, req.GlycemicIndex)
	if err != nil {
		writeError(w, h.logger, "upsert food", err)
		return
	}
	writeJSON(w, http.StatusOK, food)
}

func (h *FoodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.foodStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get food", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "food not found"})
		return
	}

	if err := h.foodStore.Delete(id); err != nil {
		writeError(w, h.logger, "delete food", err)
		return
	}
	h.logger.Info("food deleted", "food_id", id, "by", auth.UserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
