package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Risk roster",
		Headers: []string{"student_id", "name", "risk_level"},
		Rows: []map[string]string{
			{"student_id": "S-1", "name": "Ada, L.", "risk_level": "high"},
			{"student_id": "S-2", "name": "Ben", "risk_level": "low"},
		},
	}
}

func TestCSVRenderQuotesAndOrders(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "student_id,name,risk_level\nS-1,\"Ada, L.\",high\nS-2,Ben,low\n", string(out))
}

func TestCSVRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{Title: "x"})
	assert.Error(t, err)
}
