package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agendaDataset() Dataset {
	return Dataset{
		Title:   "Agenda",
		Headers: []string{"date", "start", "state"},
		Rows: []map[string]string{
			{"date": "2025-06-10", "start": "09:00", "state": "BOOKED"},
			{"date": "2025-06-10", "start": "10:00", "state": "OPEN"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(agendaDataset())
	require.NoError(t, err)
	assert.Equal(t, "date,start,state\n2025-06-10,09:00,BOOKED\n2025-06-10,10:00,OPEN\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	out, err := exporter.Render(agendaDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "application/pdf", exporter.ContentType())
}
