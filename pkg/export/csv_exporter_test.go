package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRender(t *testing.T) {
	data := Dataset{
		Columns: []string{"Student", "Course", "Final Grade"},
		Rows: [][]string{
			{"Ana Silva", "MAT-101", "16.50"},
			{"Luis Perez", "FIS-201", ""},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Student,Course,Final Grade\nAna Silva,MAT-101,16.50\nLuis Perez,FIS-201,\n", string(out))
}

func TestCSVRenderRejectsRaggedRows(t *testing.T) {
	data := Dataset{
		Columns: []string{"Student", "Course"},
		Rows:    [][]string{{"Ana Silva"}},
	}

	_, err := NewCSVExporter().Render(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
}

func TestCSVRenderRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}
