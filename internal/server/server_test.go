package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dukerupert/diabyte/internal/database"
	"github.com/dukerupert/diabyte/internal/middleware"
)

type testClient struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, Config{LoginLimit: 3, HistoryLimit: 200}, logger)
	return srv.Router()
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:4000"
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func (c *testClient) decode(rec *httptest.ResponseRecorder, v any) {
	c.t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		c.t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// register signs up a new account and keeps its session cookie.
func register(t *testing.T, router http.Handler, email string) *testClient {
	t.Helper()
	c := &testClient{t: t, router: router}
	rec := c.do("POST", "/register", map[string]string{"email": email, "name": "Test", "password": "secret1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body)
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.SessionCookieName {
			c.cookie = ck
		}
	}
	if c.cookie == nil {
		t.Fatal("register did not set a session cookie")
	}
	return c
}

func TestHealth(t *testing.T) {
	c := &testClient{t: t, router: setupServer(t)}
	rec := c.do("GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	c := &testClient{t: t, router: setupServer(t)}
	rec := c.do("GET", "/api/foods", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRegisterValidation(t *testing.T) {
	c := &testClient{t: t, router: setupServer(t)}

	rec := c.do("POST", "/register", map[string]string{"email": "bob@example.com", "password": "123"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("short password status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	rec = c.do("POST", "/register", map[string]string{"email": "not an email", "password": "secret1"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad email status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestLoginAndLogout(t *testing.T) {
	router := setupServer(t)
	register(t, router, "alice@example.com")

	c := &testClient{t: t, router: router}
	rec := c.do("POST", "/login", map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = c.do("POST", "/login", map[string]string{"email": "ALICE@example.com", "password": "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
	c.cookie = rec.Result().Cookies()[0]

	if rec := c.do("GET", "/api/me", nil); rec.Code != http.StatusOK {
		t.Errorf("me status = %d, want %d", rec.Code, http.StatusOK)
	}

	if rec := c.do("POST", "/logout", nil); rec.Code != http.StatusNoContent {
		t.Errorf("logout status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := c.do("GET", "/api/me", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginRateLimited(t *testing.T) {
	router := setupServer(t)
	c := &testClient{t: t, router: router}

	creds := map[string]string{"email": "alice@example.com", "password": "nope"}
	for i := 0; i < 3; i++ {
		if rec := c.do("POST", "/login", creds); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want %d", i+1, rec.Code, http.StatusUnauthorized)
		}
	}
	if rec := c.do("POST", "/login", creds); rec.Code != http.StatusTooManyRequests {
		t.Errorf("4th attempt status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	// A different email from the same address has its own budget.
	other := map[string]string{"email": "bob@example.com", "password": "nope"}
	if rec := c.do("POST", "/login", other); rec.Code != http.StatusUnauthorized {
		t.Errorf("other email status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

type foodList struct {
	Foods []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"foods"`
	Total int `json:"total"`
}

func TestCalculateSaveAndHistory(t *testing.T) {
	router := setupServer(t)
	alice := register(t, router, "alice@example.com")

	rec := alice.do("POST", "/api/foods", map[string]any{"name": "Oat bar", "carbs_per_100": 60})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create food status = %d, body %s", rec.Code, rec.Body)
	}
	var food struct {
		ID int64 `json:"id"`
	}
	alice.decode(rec, &food)

	// No profile yet: carbs but no dose.
	rec = alice.do("POST", "/api/calc", map[string]any{"food_id": food.ID, "grams": 150})
	if rec.Code != http.StatusOK {
		t.Fatalf("calc status = %d, body %s", rec.Code, rec.Body)
	}
	var calc struct {
		CarbsGrams float64  `json:"carbs_g"`
		DoseUnits  *float64 `json:"dose_units"`
	}
	alice.decode(rec, &calc)
	if calc.CarbsGrams != 90 || calc.DoseUnits != nil {
		t.Errorf("calc = %+v, want 90 carbs and nil dose", calc)
	}

	rec = alice.do("PUT", "/api/profile", map[string]any{"carb_ratio": 10, "correction_factor": 50, "target_bg": 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("put profile status = %d, body %s", rec.Code, rec.Body)
	}

	rec = alice.do("POST", "/api/calc", map[string]any{"food_id": food.ID, "grams": 150, "pre_bg": 180})
	alice.decode(rec, &calc)
	if calc.DoseUnits == nil || *calc.DoseUnits != 10.6 {
		t.Errorf("dose = %v, want 10.6", calc.DoseUnits)
	}

	rec = alice.do("POST", "/api/intakes", map[string]any{"source_id": food.ID, "grams": 150, "dose_units": 10.6, "pre_bg": 180})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body)
	}
	var saved struct {
		ID int64 `json:"id"`
	}
	alice.decode(rec, &saved)

	rec = alice.do("PUT", "/api/intakes/"+itoa(saved.ID)+"/post-bg", map[string]any{"post_bg": 140})
	if rec.Code != http.StatusOK {
		t.Errorf("post bg status = %d, body %s", rec.Code, rec.Body)
	}

	rec = alice.do("GET", "/api/intakes?limit=10", nil)
	var history []struct {
		ID         int64    `json:"id"`
		SourceName string   `json:"source_name"`
		PostBG     *float64 `json:"post_bg"`
	}
	alice.decode(rec, &history)
	if len(history) != 1 || history[0].SourceName != "Oat bar" || history[0].PostBG == nil {
		t.Errorf("history = %+v", history)
	}

	rec = alice.do("GET", "/api/summary", nil)
	var sum struct {
		Count int `json:"count"`
	}
	alice.decode(rec, &sum)
	if sum.Count != 1 {
		t.Errorf("summary count = %d, want 1", sum.Count)
	}

	bob := register(t, router, "bob@example.com")
	rec = bob.do("PUT", "/api/intakes/"+itoa(saved.ID)+"/post-bg", map[string]any{"post_bg": 100})
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-user post bg status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestErrorMapping(t *testing.T) {
	router := setupServer(t)
	alice := register(t, router, "alice@example.com")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing food", "GET", "/api/foods/9999", nil, http.StatusNotFound},
		{"bad id", "GET", "/api/foods/abc", nil, http.StatusBadRequest},
		{"invalid grams", "POST", "/api/calc", map[string]any{"food_id": 1, "grams": 0}, http.StatusUnprocessableEntity},
		{"bad date", "GET", "/api/meal-plans/yesterday", nil, http.StatusUnprocessableEntity},
		{"duplicate food", "POST", "/api/foods", map[string]any{"name": "apple", "carbs_per_100": 10}, http.StatusConflict},
		{"carbs above 100", "POST", "/api/foods", map[string]any{"name": "Sugar+", "carbs_per_100": 101}, http.StatusUnprocessableEntity},
		{"bad profile", "PUT", "/api/profile", map[string]any{"carb_ratio": -1}, http.StatusUnprocessableEntity},
		{"bad food limit", "GET", "/api/foods?limit=ten", nil, http.StatusUnprocessableEntity},
		{"bad food offset", "GET", "/api/foods?offset=-x", nil, http.StatusUnprocessableEntity},
		{"bad history limit", "GET", "/api/intakes?limit=ten", nil, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := alice.do(tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body)
			}
		})
	}

	req := httptest.NewRequest("POST", "/api/calc", bytes.NewBufferString("{not json"))
	req.AddCookie(alice.cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFoodSearchAndAdminDelete(t *testing.T) {
	router := setupServer(t)
	admin := register(t, router, "admin@example.com")
	user := register(t, router, "user@example.com")

	rec := user.do("GET", "/api/foods?q=ban", nil)
	var list foodList
	user.decode(rec, &list)
	if list.Total != 1 || len(list.Foods) != 1 || list.Foods[0].Name != "Banana" {
		t.Fatalf("search = %+v, want Banana", list)
	}
	id := itoa(list.Foods[0].ID)

	if rec := user.do("DELETE", "/api/foods/"+id, nil); rec.Code != http.StatusForbidden {
		t.Errorf("user delete status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := admin.do("DELETE", "/api/foods/"+id, nil); rec.Code != http.StatusNoContent {
		t.Errorf("admin delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := admin.do("DELETE", "/api/foods/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMealPlanFlow(t *testing.T) {
	router := setupServer(t)
	alice := register(t, router, "alice@example.com")
	bob := register(t, router, "bob@example.com")

	rec := alice.do("GET", "/api/foods?q=apple", nil)
	var list foodList
	alice.decode(rec, &list)
	appleID := list.Foods[0].ID

	rec = alice.do("POST", "/api/meal-plans/2025-06-01/items", map[string]any{
		"block": "breakfast", "source_type": "food", "source_id": appleID, "grams": 200,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item status = %d, body %s", rec.Code, rec.Body)
	}
	var item struct {
		ID     int64 `json:"id"`
		PlanID int64 `json:"plan_id"`
	}
	alice.decode(rec, &item)

	rec = alice.do("GET", "/api/meal-plans/2025-06-01", nil)
	var day struct {
		CarbsGrams float64 `json:"carbs_g"`
		Complete   bool    `json:"complete"`
		Blocks     []struct {
			Block string `json:"block"`
		} `json:"blocks"`
	}
	alice.decode(rec, &day)
	if day.CarbsGrams != 28 || !day.Complete || len(day.Blocks) != 4 {
		t.Errorf("day = %+v, want 28 g complete with 4 blocks", day)
	}

	itemPath := "/api/meal-plans/" + itoa(item.PlanID) + "/items/" + itoa(item.ID)
	if rec := bob.do("PUT", itemPath, map[string]any{"grams": 10}); rec.Code != http.StatusForbidden {
		t.Errorf("cross-user update status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := alice.do("PUT", itemPath, map[string]any{"grams": 100}); rec.Code != http.StatusOK {
		t.Errorf("update status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := alice.do("DELETE", itemPath, nil); rec.Code != http.StatusNoContent {
		t.Errorf("remove status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := alice.do("DELETE", itemPath, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second remove status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	if rec := alice.do("DELETE", "/api/meal-plans/2025-06-01", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete plan status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := alice.do("DELETE", "/api/meal-plans/2025-06-01", nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing plan status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRecipes(t *testing.T) {
	router := setupServer(t)
	alice := register(t, router, "alice@example.com")

	rec := alice.do("POST", "/api/recipes", map[string]any{"name": "Stew"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recipe status = %d, body %s", rec.Code, rec.Body)
	}
	rec = alice.do("GET", "/api/recipes", nil)
	var recipes []struct {
		Name string `json:"name"`
	}
	alice.decode(rec, &recipes)
	if len(recipes) != 1 || recipes[0].Name != "Stew" {
		t.Errorf("recipes = %+v", recipes)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
