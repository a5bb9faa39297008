package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
	"github.com/hackgods/booking-lifecycle/internal/auth"
	"github.com/hackgods/booking-lifecycle/internal/config"
	"github.com/hackgods/booking-lifecycle/internal/db"
)

const testSecret = "api-test-secret"

type testServer struct {
	t       *testing.T
	handler http.Handler
	conn    *sql.DB
	svc     *appointment.Service
	pro     *appointment.User
	clients []*appointment.User
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	ctx := context.Background()

	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	cfg := config.Config{QueryTimeout: 5 * time.Second, Location: time.UTC}
	svc := appointment.NewService(appointment.NewSQLiteRepository(conn), nil, nil, cfg)

	s := &testServer{t: t, conn: conn, svc: svc}
	s.handler = NewRouter(RouterConfig{
		Service:     svc,
		JWTSecret:   testSecret,
		CORSOrigins: []string{"*"},
		RateLimiter: limiter,
		Checks:      []HealthCheck{{Name: "sqlite", Critical: true, Ping: conn.PingContext}},
		Env:         "test",
	})

	s.pro = s.user("Marta", appointment.RoleProfessional)
	s.clients = []*appointment.User{s.user("Carla", appointment.RoleClient), s.user("Bia", appointment.RoleClient)}
	return s
}

func (s *testServer) user(name string, role appointment.Role) *appointment.User {
	u, err := s.svc.CreateUser(context.Background(), appointment.User{Name: name, Email: uuid.NewString() + "@example.com", Role: role})
	require.NoError(s.t, err)
	return u
}

func (s *testServer) token(u *appointment.User) string {
	tok, err := auth.MakeToken(u.ID, u.Role, testSecret, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) book(token string, at string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/appointments", token, CreateAppointmentRequest{
		ProfessionalID: s.pro.ID.String(),
		ScheduledTime:  at,
		Service:        "manicure",
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "ok", ready.Dependencies["sqlite"])
}

func TestReadinessDegradedAndDown(t *testing.T) {
	down := func(context.Context) error { return errors.New("down") }
	up := func(context.Context) error { return nil }

	h := NewHealthHandler([]HealthCheck{{Name: "db", Critical: true, Ping: up}, {Name: "redis", Ping: down}}, "", "")
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[ReadinessResponse](t, rec).Status)

	h = NewHealthHandler([]HealthCheck{{Name: "db", Critical: true, Ping: down}, {Name: "redis", Ping: up}}, "", "")
	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", decode[ReadinessResponse](t, rec).Status)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/appointments", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ghost := &appointment.User{ID: uuid.New(), Role: appointment.RoleClient}
	rec = s.do(http.MethodGet, "/appointments", s.token(ghost), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/professionals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pros := decode[[]ProfessionalResponse](t, rec)
	require.Len(t, pros, 1)
	assert.Equal(t, s.pro.ID, pros[0].ID)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	c1, c2, pro := s.token(s.clients[0]), s.token(s.clients[1]), s.token(s.pro)

	rec := s.book(c1, "2024-06-01T10:00:00Z")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "pending", appt.Status)
	assert.Equal(t, "Marta", appt.Professional.Name)
	assert.Equal(t, "Carla", appt.Client.Name)

	// same instant, different offset
	rec = s.book(c2, "2024-06-01T07:00:00-03:00")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_already_booked", decode[ErrorResponse](t, rec).Error)

	statusPath := "/appointments/" + appt.ID.String() + "/status"

	rec = s.do(http.MethodPatch, statusPath, pro, UpdateStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(http.MethodPatch, statusPath, c1, UpdateStatusRequest{Status: "cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, statusPath, pro, UpdateStatusRequest{Status: "pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(http.MethodPatch, statusPath, pro, UpdateStatusRequest{Status: "completed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/feedbacks", c1, SubmitFeedbackRequest{AppointmentID: appt.ID.String(), Rating: 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decode[FeedbackResponse](t, rec).Rating)

	rec = s.do(http.MethodPost, "/feedbacks", c1, SubmitFeedbackRequest{AppointmentID: appt.ID.String(), Rating: 4})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "feedback_exists", decode[ErrorResponse](t, rec).Error)

	rec = s.do(http.MethodGet, "/appointments/"+appt.ID.String(), c1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[AppointmentResponse](t, rec)
	assert.True(t, got.Rated)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, 5, got.Feedback.Rating)

	rec = s.do(http.MethodGet, "/appointments/"+appt.ID.String(), c2, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/appointments?bucket=history", c1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]AppointmentResponse](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, appt.ID, history[0].ID)

	rec = s.do(http.MethodGet, "/appointments", c2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = s.do(http.MethodGet, "/professionals/"+s.pro.ID.String()+"/feedbacks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fbs := decode[[]FeedbackDetailResponse](t, rec)
	require.Len(t, fbs, 1)
	assert.Equal(t, "Carla", fbs[0].Client.Name)
	assert.Equal(t, "manicure", fbs[0].Service)

	rec = s.do(http.MethodGet, "/stats/monthly?months_back=6", pro, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]MonthCountResponse](t, rec), 6)

	rec = s.do(http.MethodGet, "/stats/summary?period=M%C3%AAs", c1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[SummaryResponse](t, rec)
	assert.Equal(t, "month", summary.Period)
	assert.Equal(t, 3, summary.Logins)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Completed)

	rec = s.do(http.MethodGet, "/stats/summary", c1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "today", decode[SummaryResponse](t, rec).Period)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	c1, pro := s.token(s.clients[0]), s.token(s.pro)

	rec := s.book(c1, "tomorrow at ten")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_scheduled_time", decode[ErrorResponse](t, rec).Error)

	rec = s.book(c1, "2024-06-01T10:00:00.000000001Z")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, rec).Error)

	rec = s.book(c1, "2024-06-01T10:00:00.000001Z")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, time.Date(2024, 6, 1, 10, 0, 0, 1000, time.UTC).Equal(decode[AppointmentResponse](t, rec).ScheduledTime))

	rec = s.do(http.MethodPost, "/appointments", c1, CreateAppointmentRequest{
		ProfessionalID: s.pro.ID.String(),
		ScheduledTime:  "2024-06-01T10:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, rec).Error)

	rec = s.book(pro, "2024-06-01T10:00:00Z")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/feedbacks", c1, SubmitFeedbackRequest{AppointmentID: uuid.NewString(), Rating: 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/appointments/"+uuid.NewString()+"/status", pro, UpdateStatusRequest{Status: "finished"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/appointments?bucket=everything", c1, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/stats/monthly", c1, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/stats/monthly?months_back=500", pro, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDependencyFailureIsRetryable(t *testing.T) {
	s := newTestServer(t, nil)
	c1 := s.token(s.clients[0])

	// warm the login cache so the auth step does not touch the store
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/appointments", c1, nil).Code)
	require.NoError(t, s.conn.Close())

	rec := s.book(c1, "2024-06-01T10:00:00Z")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "dependency_unavailable", decode[ErrorResponse](t, rec).Error)
}

func TestRateLimitOnWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestServer(t, NewRateLimiter(ctx, 0.001, 1))
	c1 := s.token(s.clients[0])

	assert.Equal(t, http.StatusCreated, s.book(c1, "2024-06-01T10:00:00Z").Code)
	rec := s.book(c1, "2024-06-01T11:00:00Z")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// reads are not limited
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/appointments", c1, nil).Code)
}
