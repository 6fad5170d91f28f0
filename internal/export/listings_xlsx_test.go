package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kostBack/internal/models"
)

func TestWriteListings(t *testing.T) {
	photo := "fotoKost-1.jpg"
	listings := []models.Listing{
		{
			ID: 1,
			ListingFields: models.ListingFields{
				Name:           "Kost A",
				PriceMonthly:   "1500000",
				City:           "Yogyakarta",
				RoomFacilities: models.StringList{"AC", "Kasur"},
			},
			ImageRefs: models.ImageRefs{Exterior: &photo},
		},
		{ID: 2, ListingFields: models.ListingFields{Name: "Kost B"}},
	}

	var buf bytes.Buffer
	err := WriteListings(&buf, listings, func(name string) string {
		return "http://localhost:5000/uploads/" + name
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])

	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Kost A", rows[1][1])
	assert.Equal(t, "1500000", rows[1][5])
	assert.Equal(t, "AC, Kasur", rows[1][12])
	assert.Equal(t, "http://localhost:5000/uploads/fotoKost-1.jpg", rows[1][15])

	assert.Equal(t, []string{"2", "Kost B"}, rows[2])

	styleID, err := f.GetCellStyle(SheetName, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestWriteListings_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteListings(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
