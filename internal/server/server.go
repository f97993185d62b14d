package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/diabyte/internal/handler"
	"github.com/dukerupert/diabyte/internal/intake"
	"github.com/dukerupert/diabyte/internal/mealplan"
	"github.com/dukerupert/diabyte/internal/middleware"
	"github.com/dukerupert/diabyte/internal/profile"
	"github.com/dukerupert/diabyte/internal/source"
	"github.com/dukerupert/diabyte/internal/store"
	ws "github.com/dukerupert/diabyte/internal/websocket"
)

const loginWindow = time.Minute

type Config struct {
	SecureCookies bool
	LoginLimit    int
	HistoryLimit  int
	// OriginPatterns lists extra hosts allowed to open /ws cross-origin.
	OriginPatterns []string
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	foodH        *handler.FoodHandler
	recipeH      *handler.RecipeHandler
	profileH     *handler.ProfileHandler
	intakeH      *handler.IntakeHandler
	mealPlanH    *handler.MealPlanHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	cfg          Config
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	foodStore := store.NewFoodStore(db)
	recipeStore := store.NewRecipeStore(db)
	profileStore := store.NewProfileStore(db)
	mealPlanStore := store.NewMealPlanStore(db)
	intakeStore := store.NewIntakeStore(db)

	sources := source.NewRegistry(source.Foods{Store: foodStore}, source.Recipes{Store: recipeStore})
	profileSvc := profile.NewService(profileStore)
	mealPlanSvc := mealplan.NewService(mealPlanStore, sources)
	intakeSvc := intake.NewService(intakeStore, foodStore, profileStore, sources, cfg.HistoryLimit)

	apiLogger := logger.With("component", "api")

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, cfg.SecureCookies, logger.With("component", "auth")),
		foodH:        handler.NewFoodHandler(foodStore, apiLogger),
		recipeH:      handler.NewRecipeHandler(recipeStore, apiLogger),
		profileH:     handler.NewProfileHandler(profileSvc, hub, apiLogger),
		intakeH:      handler.NewIntakeHandler(intakeSvc, hub, apiLogger.With("service", "intake")),
		mealPlanH:    handler.NewMealPlanHandler(mealPlanSvc, hub, apiLogger.With("service", "mealplan")),
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(),
		cfg:          cfg,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the login rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the notification hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.logger)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.LoginKey, s.cfg.LoginLimit, loginWindow)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Food catalog
	mux.HandleFunc("GET /api/foods", s.foodH.List)
	mux.HandleFunc("GET /api/foods/{id}", s.foodH.Get)
	mux.HandleFunc("POST /api/foods", s.foodH.Create)
	mux.HandleFunc("PUT /api/foods", s.foodH.Upsert)
	mux.Handle("DELETE /api/foods/{id}", middleware.RequireAdmin(http.HandlerFunc(s.foodH.Delete)))

	// Recipes
	mux.HandleFunc("GET /api/recipes", s.recipeH.List)
	mux.HandleFunc("POST /api/recipes", s.recipeH.Create)

	// Dosing profile
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PUT /api/profile", s.profileH.Put)
	mux.HandleFunc("DELETE /api/profile", s.profileH.Delete)

	// Calculation and ledger
	mux.HandleFunc("POST /api/calc", s.intakeH.Calculate)
	mux.HandleFunc("POST /api/intakes", s.intakeH.Save)
	mux.HandleFunc("GET /api/intakes", s.intakeH.History)
	mux.HandleFunc("PUT /api/intakes/{id}/post-bg", s.intakeH.AttachPostBG)
	mux.HandleFunc("GET /api/summary", s.intakeH.Summary)

	// Meal plans
	mux.HandleFunc("GET /api/meal-plans/{date}", s.mealPlanH.Day)
	mux.HandleFunc("DELETE /api/meal-plans/{date}", s.mealPlanH.DeletePlan)
	mux.HandleFunc("POST /api/meal-plans/{date}/items", s.mealPlanH.AddItem)
	mux.HandleFunc("PUT /api/meal-plans/{plan_id}/items/{id}", s.mealPlanH.UpdateItem)
	mux.HandleFunc("DELETE /api/meal-plans/{plan_id}/items/{id}", s.mealPlanH.RemoveItem)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.OriginPatterns, s.logger.With("component", "websocket")))
}
