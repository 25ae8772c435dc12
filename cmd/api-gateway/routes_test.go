package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/handler"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/repository"
	"github.com/noah-isme/advising-api/internal/service"
	"github.com/noah-isme/advising-api/pkg/config"
)

type testServer struct {
	router http.Handler
	auth   *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		Slots:     config.SlotConfig{DayStart: "08:00", DayEnd: "17:00", FineStepMinutes: 15, MeetingDurationMinutes: 30},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}
	logr := zap.NewNop()
	metrics := service.NewMetricsService()

	store := repository.NewMemoryStore(time.Second, metrics)
	store.PutUser(models.User{ID: "teacher-1", Email: "vega@example.edu", FullName: "Dr. Vega", Role: models.RoleTeacher, Active: true})
	store.PutUser(models.User{ID: "student-1", Email: "ana@example.edu", FullName: "Ana", Role: models.RoleStudent, Active: true})
	store.PutUser(models.User{ID: "student-2", Email: "ben@example.edu", FullName: "Ben", Role: models.RoleStudent, Active: true})

	clock, err := service.NewSlotClock(cfg.Slots)
	require.NoError(t, err)
	directory := service.NewDirectoryService(store, logr)
	notifications := service.NewNotificationService(directory, service.NewLogMailer(logr), metrics, service.NotificationOptions{}, logr)
	schedule := service.NewScheduleService(store, clock, directory, nil, logr)
	availability := service.NewAvailabilityService(store, store, directory, clock, notifications, schedule, nil, logr)
	bookings := service.NewBookingService(store, store, directory, notifications, schedule, metrics, nil, logr)
	auth := service.NewAuthService(service.AuthConfig{Secret: "test", Expiry: time.Hour}, logr)

	router := newRouter(cfg, logr, routeDeps{
		auth:         auth,
		metrics:      metrics,
		availability: handler.NewAvailabilityHandler(availability),
		schedule:     handler.NewScheduleHandler(schedule),
		bookings:     handler.NewBookingHandler(bookings, service.NewCalendarService(store, directory, logr)),
		agenda:       handler.NewAgendaHandler(service.NewExportService(store, directory, logr)),
		ops:          handler.NewMetricsHandler(metrics, nil),
	})
	return &testServer{router: router, auth: auth}
}

func (s *testServer) do(t *testing.T, method, path, userID string, role models.UserRole, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, _, err := s.auth.IssueToken(&models.User{ID: userID, Role: role})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestRoutesBookingFlow(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPut, "/api/v1/availability", "teacher-1", models.RoleTeacher, map[string]string{
		"date": "2030-03-04", "start_time": "09:00", "meeting_mode": "online",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			Entry struct {
				ID string `json:"id"`
			} `json:"entry"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	entryID := created.Data.Entry.ID
	require.NotEmpty(t, entryID)

	w = srv.do(t, http.MethodPost, "/api/v1/bookings", "student-1", models.RoleStudent, map[string]string{"availability_id": entryID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var booked struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &booked))

	w = srv.do(t, http.MethodPost, "/api/v1/bookings", "student-2", models.RoleStudent, map[string]string{"availability_id": entryID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/bookings/me", "student-1", models.RoleStudent, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/bookings/"+booked.Data.ID+"/ics", "teacher-1", models.RoleTeacher, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BEGIN:VEVENT")

	w = srv.do(t, http.MethodGet, "/api/v1/schedule/teacher-1/2030-03-04", "student-2", models.RoleStudent, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"BOOKED"`)

	w = srv.do(t, http.MethodPost, "/api/v1/bookings/"+booked.Data.ID+"/cancel", "student-1", models.RoleStudent, map[string]string{"reason": "exam"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodDelete, "/api/v1/availability/teacher-1/2030-03-04/09:00", "teacher-1", models.RoleTeacher, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRoutesGuards(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, "/api/v1/bookings/me", "", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodGet, "/api/v1/bookings/me", "teacher-1", models.RoleTeacher, nil).Code)
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodPut, "/api/v1/availability", "student-1", models.RoleStudent, map[string]string{}).Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/metrics", "", "", nil).Code)
}
