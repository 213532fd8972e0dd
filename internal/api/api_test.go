package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/duffymelancholic/diabetes-management-app/internal/credential"
	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
	"github.com/duffymelancholic/diabetes-management-app/internal/service"
	"github.com/duffymelancholic/diabetes-management-app/internal/testutil"
)

type harness struct {
	t     *testing.T
	e     *echo.Echo
	mem   *testutil.Memory
	users *service.UserService
}

// storeWrappers lets a test replace a store with one that fails.
type storeWrappers struct {
	users    func(service.UserStore) service.UserStore
	readings func(service.ReadingStore) service.ReadingStore
}

func newHarness(t *testing.T, opts Options) *harness {
	return newHarnessWith(t, opts, storeWrappers{})
}

func newHarnessWith(t *testing.T, opts Options, wrap storeWrappers) *harness {
	mem := testutil.NewMemory()
	rec := &testutil.Recorder{}
	creds := credential.New("api-test-secret", time.Hour, bcrypt.MinCost)

	var userStore service.UserStore = mem.Users()
	if wrap.users != nil {
		userStore = wrap.users(userStore)
	}
	var readingStore service.ReadingStore = mem.Readings()
	if wrap.readings != nil {
		readingStore = wrap.readings(readingStore)
	}

	users := service.NewUserService(userStore, creds, rec)
	e := NewServer(Services{
		Users:       users,
		Readings:    service.NewReadingService(readingStore, rec),
		Medications: service.NewMedicationService(mem.Medications(), rec),
		Meals:       service.NewMealService(mem.Meals(), &testutil.MealCache{}, rec),
	}, creds, opts)
	return &harness{t: t, e: e, mem: mem, users: users}
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(h.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func (h *harness) signup(email string) (string, int64) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/signup", "", map[string]string{"name": "Pat", "email": email, "password": "pw"})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		User        struct{ ID int64 } `json:"user"`
		AccessToken string             `json:"access_token"`
	}
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.AccessToken, body.User.ID
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, code int, msg string) {
	t.Helper()
	require.Equal(t, code, rec.Code, rec.Body.String())
	body := jsonBody(t, rec)
	require.Contains(t, body, "error")
	if msg != "" {
		assert.Equal(t, msg, body["error"])
	}
}

func TestSignupResponse(t *testing.T) {
	h := newHarness(t, Options{})

	rec := h.do(http.MethodPost, "/signup", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "secret", "diabetes_type": "type1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := jsonBody(t, rec)
	assert.NotEmpty(t, body["access_token"])
	assert.Len(t, body["education"], 3)

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "type1", user["diabetes_type"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	dup := h.do(http.MethodPost, "/signup", "", map[string]string{"name": "Eve", "email": "ada@example.com", "password": "x"})
	assertError(t, dup, http.StatusBadRequest, "User with this email already exists")

	login := h.do(http.MethodPost, "/login", "", map[string]string{"email": "ada@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, login.Code)
	assert.Equal(t, "Ada", jsonBody(t, login)["user"].(map[string]interface{})["name"])

	missing := h.do(http.MethodPost, "/signup", "", map[string]string{"email": "x@example.com"})
	assertError(t, missing, http.StatusBadRequest, "Name, email, and password are required")
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t, Options{})
	h.signup("pat@example.com")

	assertError(t, h.do(http.MethodPost, "/login", "", map[string]string{"email": "pat@example.com", "password": "nope"}),
		http.StatusUnauthorized, "Invalid email or password")
	assertError(t, h.do(http.MethodPost, "/login", "", map[string]string{"email": "pat@example.com"}),
		http.StatusBadRequest, "Email and password are required")
	assertError(t, h.do(http.MethodPost, "/login", "", `{"email":`),
		http.StatusBadRequest, "Invalid request payload")
}

func TestTokenRequired(t *testing.T) {
	h := newHarness(t, Options{})

	for _, path := range []string{"/check_session", "/readings", "/medications", "/meals", "/me/bmi"} {
		assertError(t, h.do(http.MethodGet, path, "", nil), http.StatusUnauthorized, "")
		assertError(t, h.do(http.MethodGet, path, "not-a-token", nil), http.StatusUnauthorized, "")
	}

	rec := h.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", jsonBody(t, rec)["status"])

	rec = h.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckSession(t *testing.T) {
	h := newHarness(t, Options{})
	token, id := h.signup("pat@example.com")

	rec := h.do(http.MethodGet, "/check_session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := jsonBody(t, rec)
	assert.Equal(t, float64(id), body["id"])
	assert.Equal(t, "pat@example.com", body["email"])
	assert.Equal(t, []interface{}{}, body["education"])

	require.NoError(t, h.users.Delete(context.Background(), id))
	assertError(t, h.do(http.MethodGet, "/check_session", token, nil), http.StatusNotFound, "User not found")
}

func TestReadingRoundTrip(t *testing.T) {
	h := newHarness(t, Options{})
	token, _ := h.signup("pat@example.com")

	rec := h.do(http.MethodPost, "/readings", token, map[string]interface{}{
		"value": 150, "date": "2024-04-01", "time": "07:30", "context": "pre_meal",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := jsonBody(t, rec)
	assert.Equal(t, "2024-04-01", created["date"])
	assert.Equal(t, "07:30:00", created["time"])
	id := int64(created["id"].(float64))

	rec = h.do(http.MethodGet, fmt.Sprintf("/readings/%d", id), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	evaluation := jsonBody(t, rec)["evaluation"].(map[string]interface{})
	assert.Equal(t, "high", evaluation["status"])
	assert.Equal(t, "red", evaluation["color"])

	rec = h.do(http.MethodGet, "/readings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "evaluation")

	rec = h.do(http.MethodPatch, fmt.Sprintf("/readings/%d", id), token, map[string]interface{}{"value": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "normal", jsonBody(t, rec)["evaluation"].(map[string]interface{})["status"])

	assertError(t, h.do(http.MethodPatch, fmt.Sprintf("/readings/%d", id), token, map[string]interface{}{"value": 1000}),
		http.StatusBadRequest, "value must be a number between 40 and 500")

	rec = h.do(http.MethodDelete, fmt.Sprintf("/readings/%d", id), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assertError(t, h.do(http.MethodGet, fmt.Sprintf("/readings/%d", id), token, nil), http.StatusNotFound, "Reading not found")
}

func TestReadingValidationErrors(t *testing.T) {
	h := newHarness(t, Options{})
	token, _ := h.signup("pat@example.com")

	assertError(t, h.do(http.MethodPost, "/readings", token, map[string]interface{}{"value": 100, "date": "2024-13-45", "time": "07:30"}),
		http.StatusBadRequest, "date must be YYYY-MM-DD")
	assertError(t, h.do(http.MethodPost, "/readings", token, map[string]interface{}{"value": 100}),
		http.StatusBadRequest, "value, date (YYYY-MM-DD), and time (HH:MM) are required")
	assertError(t, h.do(http.MethodGet, "/readings/abc", token, nil), http.StatusNotFound, "Reading not found")
}

func TestReadingOwnershipIsolation(t *testing.T) {
	h := newHarness(t, Options{})
	alice, _ := h.signup("alice@example.com")
	bob, _ := h.signup("bob@example.com")

	rec := h.do(http.MethodPost, "/readings", alice, map[string]interface{}{"value": 110, "date": "2024-04-01", "time": "08:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := fmt.Sprintf("/readings/%d", int64(jsonBody(t, rec)["id"].(float64)))

	assertError(t, h.do(http.MethodGet, path, bob, nil), http.StatusNotFound, "Reading not found")
	assertError(t, h.do(http.MethodPatch, path, bob, map[string]interface{}{"notes": "mine"}), http.StatusNotFound, "Reading not found")
	assertError(t, h.do(http.MethodDelete, path, bob, nil), http.StatusNotFound, "Reading not found")
	assertError(t, h.do(http.MethodPost, path+"/meals", bob, map[string]interface{}{"meal_id": 1}), http.StatusNotFound, "Reading not found")

	rec = h.do(http.MethodGet, "/readings", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, path, alice, nil).Code)
}

func TestLinkAndUnlinkMeal(t *testing.T) {
	h := newHarness(t, Options{})
	token, _ := h.signup("pat@example.com")

	rec := h.do(http.MethodPost, "/readings", token, map[string]interface{}{"value": 160, "date": "2024-04-01", "time": "13:00", "context": "post_meal"})
	require.Equal(t, http.StatusCreated, rec.Code)
	readingID := int64(jsonBody(t, rec)["id"].(float64))
	mealsPath := fmt.Sprintf("/readings/%d/meals", readingID)

	rec = h.do(http.MethodPost, "/meals", token, map[string]interface{}{"name": "Pasta", "meal_type": "lunch"})
	require.Equal(t, http.StatusCreated, rec.Code)
	mealID := int64(jsonBody(t, rec)["id"].(float64))

	assertError(t, h.do(http.MethodPost, mealsPath, token, map[string]interface{}{}), http.StatusBadRequest, "meal_id is required")
	assertError(t, h.do(http.MethodPost, mealsPath, token, map[string]interface{}{"meal_id": 4242}), http.StatusNotFound, "Meal not found")

	rec = h.do(http.MethodPost, mealsPath, token, map[string]interface{}{"meal_id": mealID, "carbs_amount": 60})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, fmt.Sprintf(`{"message":"linked","reading_id":%d,"meal_id":%d,"carbs_amount":60}`, readingID, mealID), rec.Body.String())

	assertError(t, h.do(http.MethodPost, mealsPath, token, map[string]interface{}{"meal_id": mealID}), http.StatusBadRequest, "")

	assertError(t, h.do(http.MethodDelete, mealsPath, token, nil), http.StatusBadRequest, "meal_id query param is required")
	assertError(t, h.do(http.MethodDelete, mealsPath+"?meal_id=x", token, nil), http.StatusBadRequest, "meal_id query param is required")

	unlink := fmt.Sprintf("%s?meal_id=%d", mealsPath, mealID)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, unlink, token, nil).Code)
	assert.Empty(t, h.mem.Links(readingID))
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, unlink, token, nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, mealsPath+"?meal_id=999", token, nil).Code)

	assertError(t, h.do(http.MethodDelete, "/readings/999/meals?meal_id=1", token, nil), http.StatusNotFound, "Reading not found")
}

func TestProfileAndBMI(t *testing.T) {
	h := newHarness(t, Options{})
	token, _ := h.signup("pat@example.com")

	assertError(t, h.do(http.MethodGet, "/me/bmi", token, nil), http.StatusBadRequest, "height_cm and weight_kg must be set on profile")
	assertError(t, h.do(http.MethodPatch, "/me", token, map[string]interface{}{"height_cm": "abc"}), http.StatusBadRequest, "height_cm must be a number")

	rec := h.do(http.MethodPatch, "/me", token, map[string]interface{}{"height_cm": 180, "weight_kg": "81", "diabetes_type": "prediabetes"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := jsonBody(t, rec)
	assert.Equal(t, 180.0, body["height_cm"])
	assert.Equal(t, "prediabetes", body["diabetes_type"])

	rec = h.do(http.MethodGet, "/me/bmi", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bmi":25.0,"category":"Overweight"}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/check_session", token, nil)
	assert.Len(t, jsonBody(t, rec)["education"], 2)
}

func TestMedicationEndpoints(t *testing.T) {
	h := newHarness(t, Options{})
	token, _ := h.signup("pat@example.com")
	other, _ := h.signup("other@example.com")

	assertError(t, h.do(http.MethodPost, "/medications", token, map[string]string{"name": "Metformin"}),
		http.StatusBadRequest, "name, dose, and time (HH:MM) are required")

	rec := h.do(http.MethodPost, "/medications", token, map[string]string{"name": "Metformin", "dose": "500mg", "time": "08:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := jsonBody(t, rec)
	assert.Equal(t, "pending", created["status"])
	path := fmt.Sprintf("/medications/%d", int64(created["id"].(float64)))

	assertError(t, h.do(http.MethodPatch, path, token, map[string]string{"status": "later"}),
		http.StatusBadRequest, "status must be 'pending', 'taken', or 'missed'")
	assertError(t, h.do(http.MethodPatch, path, other, map[string]string{"status": "taken"}),
		http.StatusNotFound, "Medication not found")

	rec = h.do(http.MethodPatch, path, token, map[string]string{"status": "taken", "name": "", "dose": " "})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := jsonBody(t, rec)
	assert.Equal(t, "taken", updated["status"])
	assert.Equal(t, "Metformin", updated["name"])
	assert.Equal(t, "500mg", updated["dose"])

	rec = h.do(http.MethodGet, "/medications", other, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMealEndpoints(t *testing.T) {
	h := newHarness(t, Options{})
	token, _ := h.signup("pat@example.com")

	assertError(t, h.do(http.MethodPost, "/meals", token, map[string]string{"meal_type": "snack"}), http.StatusBadRequest, "name is required")

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/meals", token, map[string]string{"name": "Apple"}).Code)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/meals", token, map[string]string{"name": "Toast"}).Code)

	rec := h.do(http.MethodGet, "/meals", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var meals []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meals))
	require.Len(t, meals, 2)
	assert.Equal(t, "Toast", meals[0]["name"])
}

func TestDeletedUserDataIsUnreachable(t *testing.T) {
	h := newHarness(t, Options{})
	token, id := h.signup("pat@example.com")

	rec := h.do(http.MethodPost, "/readings", token, map[string]interface{}{"value": 110, "date": "2024-04-01", "time": "08:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := fmt.Sprintf("/readings/%d", int64(jsonBody(t, rec)["id"].(float64)))
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/medications", token, map[string]string{"name": "A", "dose": "1", "time": "09:00"}).Code)

	require.NoError(t, h.users.Delete(context.Background(), id))

	assertError(t, h.do(http.MethodGet, path, token, nil), http.StatusNotFound, "")
	assert.JSONEq(t, `[]`, h.do(http.MethodGet, "/medications", token, nil).Body.String())
	assert.JSONEq(t, `[]`, h.do(http.MethodGet, "/readings", token, nil).Body.String())
}

func TestUnknownRouteUsesErrorBody(t *testing.T) {
	h := newHarness(t, Options{})
	assertError(t, h.do(http.MethodGet, "/nope", "", nil), http.StatusNotFound, "")
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, Options{RateLimit: 1, RateBurst: 2})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/", "", nil).Code)
	}
	assertError(t, h.do(http.MethodGet, "/", "", nil), http.StatusTooManyRequests, "rate limit exceeded")
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", "", nil).Code)
}

func TestRateLimitKeysOnPeerAddress(t *testing.T) {
	h := newHarness(t, Options{RateLimit: 1, RateBurst: 2})

	send := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		req.Header.Set(echo.HeaderXForwardedFor, forwarded)
		req.Header.Set(echo.HeaderXRealIP, forwarded)
		rec := httptest.NewRecorder()
		h.e.ServeHTTP(rec, req)
		return rec.Code
	}

	var codes []int
	for i := 0; i < 5; i++ {
		codes = append(codes, send("203.0.113.7:4000", fmt.Sprintf("10.0.0.%d", i+1)))
	}
	assert.Equal(t, []int{200, 200, 429, 429, 429}, codes)

	// A different peer has its own bucket.
	assert.Equal(t, http.StatusOK, send("203.0.113.8:4000", "10.0.0.1"))
}

var errDeadlock = errors.New("deadlock found")

type failingReadingStore struct{ service.ReadingStore }

func (failingReadingStore) Create(context.Context, *entity.Reading) error { return errDeadlock }

type failingUserStore struct{ service.UserStore }

func (failingUserStore) Update(context.Context, *entity.User) error { return errDeadlock }

func TestStorageFailuresAnswer400(t *testing.T) {
	h := newHarnessWith(t, Options{}, storeWrappers{
		users:    func(s service.UserStore) service.UserStore { return failingUserStore{s} },
		readings: func(s service.ReadingStore) service.ReadingStore { return failingReadingStore{s} },
	})
	token, _ := h.signup("pat@example.com")

	assertError(t, h.do(http.MethodPost, "/readings", token, map[string]interface{}{"value": 120, "date": "2024-03-01", "time": "08:30"}),
		http.StatusBadRequest, "deadlock found")
	assert.JSONEq(t, `[]`, h.do(http.MethodGet, "/readings", token, nil).Body.String())

	assertError(t, h.do(http.MethodPatch, "/me", token, map[string]interface{}{"name": "Sam"}),
		http.StatusBadRequest, "deadlock found")
	assert.Equal(t, "Pat", jsonBody(t, h.do(http.MethodGet, "/check_session", token, nil))["name"])
}

func TestRequestLogSeesHandlerErrors(t *testing.T) {
	var buf bytes.Buffer
	orig := logger
	logger = zerolog.New(&buf)
	t.Cleanup(func() { logger = orig })

	h := newHarness(t, Options{})
	assertError(t, h.do(http.MethodGet, "/nope", "", nil), http.StatusNotFound, "")

	line := buf.String()
	assert.Contains(t, line, `"level":"warn"`)
	assert.Contains(t, line, `"status":404`)
	assert.Contains(t, line, `"error":`)
}
