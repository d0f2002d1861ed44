package schedule

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

var rosterHeader = []any{"date", "prenom", "nom", "doctor", "specialite", "duration_type",
	"start_time", "end_time", "note", "telephone"}

// workbook writes rows to the first sheet; a nil row leaves the line empty.
func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		if row == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseRoster(t *testing.T) {
	buf := workbook(t,
		rosterHeader,
		[]any{"2026-06-15", "Amina", "Benali", "Dr Kaci", "Laser", "moyen", "09:30", "10:00", "", "0555 12 34 56"},
		[]any{"15/06/2026", "Yacine", "Haddad", "Samir Kaci", "", "short", "10h", "", "retard", ""},
		nil,
		[]any{46188.0, "Lina", "Mansouri", "Kaci", "", "xl", 0.375},
		[]any{"2026-06-15", "Sara", "", "Kaci", "", "", "11:00"},
		[]any{"demain", "Omar", "Saidi", "Kaci", "", "", "11:00"},
	)

	roster, err := ParseRoster(buf)
	require.NoError(t, err)

	assert.Equal(t, 5, roster.Total)
	assert.Equal(t, []SkippedRow{{Row: 6, Reason: SkipNoNom}, {Row: 7, Reason: SkipBadDate}}, roster.Skipped)
	require.Len(t, roster.Rows, 3)

	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	first := roster.Rows[0]
	assert.Equal(t, 2, first.Line)
	assert.True(t, first.Date.Equal(day))
	assert.Equal(t, "09:30", first.Start)
	require.NotNil(t, first.End)
	assert.Equal(t, "10:00", *first.End)
	require.NotNil(t, first.DurationType)
	assert.Equal(t, DurationMoyen, *first.DurationType)
	require.NotNil(t, first.Telephone)
	assert.Nil(t, first.Note)

	second := roster.Rows[1]
	assert.True(t, second.Date.Equal(day))
	assert.Equal(t, "10:00", second.Start)
	assert.Equal(t, DurationCourt, *second.DurationType)
	assert.Nil(t, second.Specialite)

	third := roster.Rows[2]
	assert.Equal(t, 5, third.Line)
	assert.True(t, third.Date.Equal(day), "excel serial date")
	assert.Equal(t, "09:00", third.Start)
	assert.Nil(t, third.DurationType)
	assert.Nil(t, third.End)
}

func TestParseRoster_NoHeader(t *testing.T) {
	buf := workbook(t, []any{"2026-06-16", "Amina", "Benali", "Kaci", "", "", "08:00"})
	roster, err := ParseRoster(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, roster.Total)
	assert.Len(t, roster.Rows, 1)
}

func TestParseRoster_HeaderLabels(t *testing.T) {
	buf := workbook(t,
		[]any{"Date", "Prénom", "Nom", "Médecin"},
		[]any{"2026-06-16", "Amina", "Benali", "Kaci", "", "", "08:00"},
	)
	roster, err := ParseRoster(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, roster.Total)
	assert.Empty(t, roster.Skipped)
	assert.Len(t, roster.Rows, 1)
}

func TestParseRoster_BadFirstLineIsSkippedNotHeader(t *testing.T) {
	buf := workbook(t,
		[]any{"lundi", "Amina", "Benali", "Kaci", "", "", "08:00"},
		[]any{"2026-06-16", "Karim", "Haddad", "Kaci", "", "", "08:30"},
	)
	roster, err := ParseRoster(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, roster.Total)
	assert.Equal(t, []SkippedRow{{Row: 1, Reason: SkipBadDate}}, roster.Skipped)
	assert.Len(t, roster.Rows, 1)
}

func TestParseRoster_NotAWorkbook(t *testing.T) {
	_, err := ParseRoster(bytes.NewBufferString("date,nom\n"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestParseDay(t *testing.T) {
	want := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2026-06-15", "15/06/2026", "46188", " 2026-06-15 "} {
		got, err := ParseDay(in)
		if assert.NoError(t, err, in) {
			assert.True(t, got.Equal(want), in)
		}
	}
	for _, in := range []string{"", "2026/06/15", "15-06-2026", "0.5"} {
		_, err := ParseDay(in)
		assert.Error(t, err, in)
	}
}

func TestParseClock(t *testing.T) {
	tests := map[string]string{
		"9:05":     "09:05",
		"09:05:30": "09:05",
		"14h30":    "14:30",
		"14H":      "14:00",
		"0.5":      "12:00",
		"46188.75": "18:00",
	}
	for in, want := range tests {
		got, err := ParseClock(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}
	for _, in := range []string{"", "abc", "25:00", "45000"} {
		_, err := ParseClock(in)
		assert.Error(t, err, in)
	}
}

func TestNormalizeDuration(t *testing.T) {
	assert.Equal(t, DurationCourt, *NormalizeDuration("Short"))
	assert.Equal(t, DurationMoyen, *NormalizeDuration(" medium "))
	assert.Equal(t, DurationLong, *NormalizeDuration("LONGUE"))
	assert.Nil(t, NormalizeDuration("forever"))
	assert.Nil(t, NormalizeDuration(""))
}
