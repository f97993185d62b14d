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

type RecipeHandler struct {
	recipeStore *store.RecipeStore
	logger      *slog.Logger
}

func NewRecipeHandler(rs *store.RecipeStore, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{recipeStore: rs, logger: logger}
}

type recipeRequest struct {
	Name        string   `json:"name"`
	CarbsPer100 *float64 `json:"carbs_per_100"`
}

func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipeStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list recipes", err)
		return
	}
	if recipes == nil {
		recipes = []model.Recipe{}
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, h.logger, "create recipe", fmt.Errorf("%w: name is required", model.ErrInvalidInput))
		return
	}
	if c := req.CarbsPer100; c != nil && (math.IsNaN(*c) || *c < 0 || *c > maxCarbsPer100) {
		writeError(w, h.logger, "create recipe", fmt.Errorf("%w: carbs_per_100 must be between 0 and %d", model.ErrInvalidInput, maxCarbsPer100))
		return
	}

	recipe, err := h.recipeStore.Create(auth.UserID(r.Context()), req.Name, req.CarbsPer100)
	if err != nil {
		writeError(w, h.logger, "create recipe", err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}
