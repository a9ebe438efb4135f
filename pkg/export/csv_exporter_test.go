package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderWritesBOMAndRows(t *testing.T) {
	exporter := NewCSVExporter()

	data := Dataset{
		Headers: []string{"step", "details"},
		Rows: []map[string]string{
			{"step": "Harvest🌾", "details": "Crop Tomato harvested"},
			{"step": "Transport🚛"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, utf8BOM))
	body := string(bytes.TrimPrefix(out, utf8BOM))
	assert.Equal(t, "step,details\nHarvest🌾,Crop Tomato harvested\nTransport🚛,\n", body)
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}
