package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"telehealth-calls/internal/appointments"
	"telehealth-calls/internal/auth"
	"telehealth-calls/internal/calls"
	"telehealth-calls/internal/config"
	"telehealth-calls/internal/events"
	"telehealth-calls/internal/video"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu        sync.Mutex
	createErr error
	endErr    error
	ended     []string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreateRoom(ctx context.Context, spec video.RoomSpec) (video.Room, error) {
	if p.createErr != nil {
		return video.Room{}, p.createErr
	}
	return video.Room{Name: spec.Name, URL: "https://clinic.daily.co/" + spec.Name}, nil
}

func (p *stubProvider) EndRoom(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, name)
	return p.endErr
}

type server struct {
	engine   *gin.Engine
	tokens   *auth.Manager
	provider *stubProvider
	bus      *events.MemoryBus
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	provider := &stubProvider{}
	bus := events.NewMemoryBus()
	dir := appointments.NewMemoryDirectory(
		appointments.Appointment{ID: 100, DoctorID: 7, PatientID: 42},
	)
	svc := calls.NewService(calls.NewMemoryStore(), dir, provider, calls.Options{Publisher: bus})

	r := gin.New()
	api := r.Group("/api")
	api.Use(auth.RequireAccessToken(tokens), ClientIP())
	RegisterCallRoutes(api, Handlers{Calls: svc, Events: bus}, nil)

	return &server{engine: r, tokens: tokens, provider: provider, bus: bus}
}

func (s *server) token(t *testing.T, id int64, role string) string {
	t.Helper()
	tok, err := s.tokens.Issue(time.Now(), id, role)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w.Code, body
}

func callField(t *testing.T, body map[string]any, field string) any {
	t.Helper()
	call, ok := body["call"].(map[string]any)
	require.True(t, ok, "response has no call: %v", body)
	return call[field]
}

func TestCallLifecycle_EndToEnd(t *testing.T) {
	s := newServer(t)
	doctor := s.token(t, 7, "doctor")
	patient := s.token(t, 42, "patient")

	code, body := s.do(t, http.MethodPost, "/api/appointments/100/create-room", doctor)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Video room created successfully", body["message"])
	assert.EqualValues(t, 1, callField(t, body, "call_id"))
	assert.Equal(t, "ongoing", callField(t, body, "status"))
	assert.Equal(t, true, callField(t, body, "doctor_joined"))
	assert.Equal(t, false, callField(t, body, "patient_joined"))
	assert.True(t, strings.HasPrefix(callField(t, body, "room_url").(string), "https://clinic.daily.co/appointment-100-"))

	code, body = s.do(t, http.MethodGet, "/api/appointments/100/call-status", patient)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body["status"])
	assert.EqualValues(t, 1, callField(t, body, "call_id"))

	code, body = s.do(t, http.MethodPost, "/api/calls/1/join", patient)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Joined call successfully", body["message"])
	assert.Equal(t, true, callField(t, body, "patient_joined"))

	code, body = s.do(t, http.MethodPost, "/api/calls/1/end", patient)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Call ended successfully", body["message"])
	assert.Equal(t, "ended", callField(t, body, "status"))
	assert.NotNil(t, callField(t, body, "ended_at"))
	assert.Equal(t, false, callField(t, body, "doctor_joined"))
	assert.Equal(t, false, callField(t, body, "patient_joined"))

	for _, tok := range []string{doctor, patient} {
		code, body = s.do(t, http.MethodGet, "/api/appointments/100/call-status", tok)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]any{"status": "no-active-call"}, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/appointments/100/calls", doctor)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["calls"], 1)
}

func TestCreateRoom_StatusCodes(t *testing.T) {
	s := newServer(t)
	doctor := s.token(t, 7, "doctor")

	code, _ := s.do(t, http.MethodPost, "/api/appointments/100/create-room", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/api/appointments/100/create-room", s.token(t, 42, "patient"))
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodPost, "/api/appointments/100/create-room", s.token(t, 8, "doctor"))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, msgNotAuthorized, body["message"])

	code, _ = s.do(t, http.MethodPost, "/api/appointments/abc/create-room", doctor)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/appointments/999/create-room", doctor)
	assert.Equal(t, http.StatusNotFound, code)

	code, first := s.do(t, http.MethodPost, "/api/appointments/100/create-room", doctor)
	require.Equal(t, http.StatusOK, code)
	code, body = s.do(t, http.MethodPost, "/api/appointments/100/create-room", doctor)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, callField(t, first, "call_id"), callField(t, body, "call_id"))
}

func TestCreateRoom_ProviderFailure(t *testing.T) {
	s := newServer(t)
	s.provider.createErr = &video.ProviderError{
		Provider:   "daily",
		Op:         "create room",
		StatusCode: 401,
		Code:       "authentication-error",
		Message:    "secret detail from provider",
	}

	code, body := s.do(t, http.MethodPost, "/api/appointments/100/create-room", s.token(t, 7, "doctor"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to create video room", body["message"])
	assert.Equal(t, "daily create room failed (status 401): authentication-error", body["error"])
	assert.NotContains(t, body["error"], "secret detail")
}

func TestJoinAndEnd_NotFoundOrNotAuthorized(t *testing.T) {
	s := newServer(t)
	doctor := s.token(t, 7, "doctor")
	patient := s.token(t, 42, "patient")
	stranger := s.token(t, 43, "patient")

	code, _ := s.do(t, http.MethodPost, "/api/appointments/100/create-room", doctor)
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodPost, "/api/calls/1/join", stranger)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, msgCallNotFound, body["message"])

	code, _ = s.do(t, http.MethodPost, "/api/calls/1/join", doctor)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/calls/1/end", stranger)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/calls/0/end", doctor)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/calls/1/end", doctor)
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, "/api/calls/1/end", doctor)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, msgCallNotFound, body["message"])

	code, _ = s.do(t, http.MethodPost, "/api/calls/1/join", patient)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEndCall_TeardownFailureStillSucceeds(t *testing.T) {
	s := newServer(t)
	doctor := s.token(t, 7, "doctor")
	s.provider.endErr = &video.ProviderError{Provider: "stub", Op: "end room", StatusCode: 503}

	code, _ := s.do(t, http.MethodPost, "/api/appointments/100/create-room", doctor)
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodPost, "/api/calls/1/end", doctor)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ended", callField(t, body, "status"))
	assert.Len(t, s.provider.ended, 1)
}

func TestCallStatus_NonPartyForbidden(t *testing.T) {
	s := newServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/appointments/100/call-status", s.token(t, 43, "patient"))
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodGet, "/api/appointments/555/call-status", s.token(t, 43, "patient"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no-active-call", body["status"])
}
