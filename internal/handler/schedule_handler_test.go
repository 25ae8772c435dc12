package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type scheduleServiceMock struct {
	teacherID string
	date      models.Date
}

func (m *scheduleServiceMock) ProjectFor(ctx context.Context, actorID, teacherID string, date models.Date) ([]models.SlotView, error) {
	m.teacherID, m.date = teacherID, date
	return []models.SlotView{{State: models.SlotOpen}}, nil
}

type agendaExporterMock struct {
	req dto.AgendaRequest
	err error
}

func (m *agendaExporterMock) Agenda(ctx context.Context, actorID string, req dto.AgendaRequest) (*dto.AgendaFile, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.AgendaFile{Filename: "agenda.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("Date\n")}, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestScheduleHandlerDay(t *testing.T) {
	svc := &scheduleServiceMock{}
	h := NewScheduleHandler(svc)

	c, w := testContext(http.MethodGet, "/schedule/teacher-1/2030-03-04", nil, "student-1", models.RoleStudent)
	c.Params = gin.Params{{Key: "teacherId", Value: "teacher-1"}, {Key: "date", Value: "2030-03-04"}}
	h.Day(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", svc.teacherID)
	assert.Equal(t, "2030-03-04", decode(t, w).Meta["date"])

	c, w = testContext(http.MethodGet, "/schedule/teacher-1/bad", nil, "student-1", models.RoleStudent)
	c.Params = gin.Params{{Key: "teacherId", Value: "teacher-1"}, {Key: "date", Value: "bad"}}
	h.Day(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgendaHandlerExport(t *testing.T) {
	exporter := &agendaExporterMock{}
	h := NewAgendaHandler(exporter)

	c, w := testContext(http.MethodGet, "/teachers/teacher-1/agenda?from=2030-03-04&format=csv", nil, "teacher-1", models.RoleTeacher)
	c.Params = gin.Params{{Key: "teacherId", Value: "teacher-1"}}
	h.Export(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="agenda.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "csv", exporter.req.Format)
	assert.Equal(t, "2030-03-04", exporter.req.From.String())

	exporter.err = appErrors.ErrForbidden
	c, w = testContext(http.MethodGet, "/teachers/teacher-1/agenda", nil, "teacher-2", models.RoleTeacher)
	c.Params = gin.Params{{Key: "teacherId", Value: "teacher-1"}}
	h.Export(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"database": pingerFunc(func(ctx context.Context) error { return nil }),
	})
	c, w := testContext(http.MethodGet, "/ready", nil, "", "")
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{
		"redis": pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	c, w = testContext(http.MethodGet, "/ready", nil, "", "")
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	c, w = testContext(http.MethodGet, "/metrics", nil, "", "")
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
