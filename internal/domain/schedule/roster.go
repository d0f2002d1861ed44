package schedule

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/pkg/textnorm"
)

// Roster columns, in sheet order.
const (
	colDate = iota
	colPrenom
	colNom
	colDoctor
	colSpecialite
	colDuration
	colStart
	colEnd
	colNote
	colTelephone
)

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

var clockLayouts = []string{"15:04", "15:04:05", "15h04"}

// Accepted header labels for the date and nom columns.
var (
	dateLabels = map[string]bool{"date": true, "jour": true, "date rdv": true}
	nomLabels  = map[string]bool{"nom": true, "name": true, "nom patient": true}
)

// Skip reasons reported per roster line.
const (
	SkipBadDate   = "unrecognized date"
	SkipBadStart  = "unrecognized start time"
	SkipNoNom     = "missing nom"
	SkipNoDoctor  = "missing doctor"
	SkipDuplicate = "duplicate appointment"
)

// RosterRow is one usable line of an uploaded roster. Line is 1-based as
// shown by spreadsheet software.
type RosterRow struct {
	Line         int
	Date         time.Time
	Prenom       string
	Nom          string
	Doctor       string
	Specialite   *string
	DurationType *string
	Start        string
	End          *string
	Note         *string
	Telephone    *string
}

// SkippedRow is a roster line that produced no entry.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Roster is the parsed first sheet of a workbook.
type Roster struct {
	Rows    []RosterRow
	Skipped []SkippedRow
	Total   int
}

// ParseRoster reads the first sheet. Blank lines are ignored and a leading
// line labelled like the columns is taken as the header. Lines missing a
// date, nom, doctor or start time are reported in Skipped.
func ParseRoster(r io.Reader) (*Roster, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("unreadable spreadsheet").Wrap(err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperr.Validation("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperr.Validation("unreadable spreadsheet").Wrap(err)
	}

	out := &Roster{Rows: []RosterRow{}, Skipped: []SkippedRow{}}
	seenData := false
	for i, cells := range rows {
		if blank(cells) {
			continue
		}
		if !seenData {
			seenData = true
			if isHeader(cells) {
				continue
			}
		}
		out.Total++
		row, reason := parseRow(cells)
		if reason != "" {
			out.Skipped = append(out.Skipped, SkippedRow{Row: i + 1, Reason: reason})
			continue
		}
		row.Line = i + 1
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func isHeader(cells []string) bool {
	return dateLabels[textnorm.Name(cell(cells, colDate))] && nomLabels[textnorm.Name(cell(cells, colNom))]
}

// parseRow returns the skip reason when the line is unusable.
func parseRow(cells []string) (RosterRow, string) {
	var row RosterRow
	day, err := ParseDay(cell(cells, colDate))
	if err != nil {
		return row, SkipBadDate
	}
	start, err := ParseClock(cell(cells, colStart))
	if err != nil {
		return row, SkipBadStart
	}
	row.Date = day
	row.Start = start
	row.Prenom = cell(cells, colPrenom)
	row.Nom = cell(cells, colNom)
	row.Doctor = cell(cells, colDoctor)
	if row.Nom == "" {
		return row, SkipNoNom
	}
	if row.Doctor == "" {
		return row, SkipNoDoctor
	}
	row.Specialite = optional(cell(cells, colSpecialite))
	row.DurationType = NormalizeDuration(cell(cells, colDuration))
	if end, err := ParseClock(cell(cells, colEnd)); err == nil {
		row.End = &end
	}
	row.Note = optional(cell(cells, colNote))
	row.Telephone = optional(cell(cells, colTelephone))
	return row, ""
}

func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ParseDay accepts YYYY-MM-DD, DD/MM/YYYY and Excel date serials.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseClock accepts HH:MM, HH:MM:SS, 9h30 and Excel time fractions, and
// returns the canonical HH:MM.
func ParseClock(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty time")
	}
	if strings.HasSuffix(s, "h") {
		s += "00"
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 {
		_, frac := math.Modf(v)
		if frac == 0 && v >= 1 {
			return "", fmt.Errorf("unrecognized time %q", s)
		}
		minutes := int(math.Round(frac * 24 * 60))
		if minutes >= 24*60 {
			minutes = 0
		}
		return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
	}
	return "", fmt.Errorf("unrecognized time %q", s)
}

// NormalizeDuration maps French and English spellings onto the closed set;
// anything else is dropped.
func NormalizeDuration(s string) *string {
	if d, ok := durationAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return &d
	}
	return nil
}
