package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/pkg/response"
)

type agendaExporter interface {
	Agenda(ctx context.Context, actorID string, req dto.AgendaRequest) (*dto.AgendaFile, error)
}

// AgendaHandler streams agenda exports.
type AgendaHandler struct {
	exporter agendaExporter
}

// NewAgendaHandler constructs the handler.
func NewAgendaHandler(exporter agendaExporter) *AgendaHandler {
	return &AgendaHandler{exporter: exporter}
}

// Export godoc
// @Summary Export a teacher's agenda
// @Tags Agenda
// @Produce text/csv
// @Produce application/pdf
// @Param teacherId path string true "Teacher ID"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /teachers/{teacherId}/agenda [get]
func (h *AgendaHandler) Export(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	from, ok := parseDate(c, c.Query("from"), "from", false)
	if !ok {
		return
	}
	to, ok := parseDate(c, c.Query("to"), "to", false)
	if !ok {
		return
	}
	file, err := h.exporter.Agenda(c.Request.Context(), actor, dto.AgendaRequest{
		TeacherID: c.Param("teacherId"),
		From:      from,
		To:        to,
		Format:    c.Query("format"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
