package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/export"
)

const defaultAgendaFormat = "csv"

var agendaHeaders = []string{"Date", "Start", "End", "Mode", "State", "Student", "Note"}

// ExportService renders a teacher's agenda as a downloadable file.
type ExportService struct {
	entries   availabilityReader
	directory actorDirectory
	renderers map[string]export.Renderer
	logger    *zap.Logger
}

// NewExportService registers the renderers under their file extensions.
func NewExportService(entries availabilityReader, directory actorDirectory, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter()}
	}
	byExt := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		byExt[r.Extension()] = r
	}
	return &ExportService{entries: entries, directory: directory, renderers: byExt, logger: logger}
}

// Agenda exports entries in [from, to] for the teacher themselves or an admin.
func (s *ExportService) Agenda(ctx context.Context, actorID string, req dto.AgendaRequest) (*dto.AgendaFile, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == models.RoleTeacher && models.Can(actor.Role, models.ActionExportOwnAgenda):
		if actor.ID != req.TeacherID {
			return nil, appErrors.ErrForbidden
		}
	case models.Can(actor.Role, models.ActionExportAnyAgenda):
	default:
		return nil, appErrors.ErrForbidden
	}
	teacher, err := s.directory.Teacher(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = defaultAgendaFormat
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}

	if req.From.IsZero() {
		req.From = models.DateOf(time.Now().UTC())
	}
	if req.To.IsZero() {
		req.To = req.From.AddDays(6)
	}
	if req.To.Before(req.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if req.From.AddDays(maxAvailabilityRangeDays).Before(req.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range is too long")
	}

	details, err := s.entries.ListRange(ctx, teacher.ID, req.From, req.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agenda")
	}

	dataset := export.Dataset{
		Title:    "Advising agenda: " + teacher.DisplayName(),
		Subtitle: fmt.Sprintf("%s to %s", req.From, req.To),
		Headers:  agendaHeaders,
		Rows:     make([]map[string]string, 0, len(details)),
	}
	for _, d := range details {
		row := map[string]string{
			"Date":  d.Date.String(),
			"Start": d.StartTime.String(),
			"End":   d.EndTime.String(),
			"Mode":  d.MeetingMode.Label(),
			"State": string(models.SlotOpen),
			"Note":  d.Note,
		}
		if d.Booking != nil {
			row["State"] = string(models.SlotBooked)
			row["Student"] = d.Booking.StudentName
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	content, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render agenda")
	}
	s.logger.Info("agenda exported",
		zap.String("actor_id", actor.ID),
		zap.String("teacher_id", teacher.ID),
		zap.String("format", format),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &dto.AgendaFile{
		Filename:    fmt.Sprintf("agenda-%s-%s-%s.%s", teacher.ID, req.From, req.To, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}
