package transform

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/maiwar-wq/internal/entities"
	"github.com/xuri/excelize/v2"
)

// textDateLayouts are accepted for date cells stored as text instead of date serials
var textDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2/01/2006",
	"02/01/2006",
}

// sheetGrid gives 1-indexed access to the raw values of one sheet
type sheetGrid struct {
	file     *excelize.File
	name     string
	rows     [][]string
	maxCol   int
	date1904 bool
}

func loadSheet(f *excelize.File, name string, date1904 bool) (*sheetGrid, error) {
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, formatErrorf(name, "", err, "failed to read rows")
	}

	maxCol := 0
	for _, row := range rows {
		if len(row) > maxCol {
			maxCol = len(row)
		}
	}

	return &sheetGrid{
		file:     f,
		name:     name,
		rows:     rows,
		maxCol:   maxCol,
		date1904: date1904,
	}, nil
}

func (g *sheetGrid) maxRow() int {
	return len(g.rows)
}

func (g *sheetGrid) raw(col, row int) string {
	if row < 1 || row > len(g.rows) {
		return ""
	}
	cells := g.rows[row-1]
	if col < 1 || col > len(cells) {
		return ""
	}
	return cells[col-1]
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row, col)
	}
	return name
}

// cellKind classifies a non-empty cell as numeric, text or something else
type cellKind int

const (
	cellNumeric cellKind = iota
	cellText
	cellDate
	cellBool
)

func (g *sheetGrid) kind(col, row int) (cellKind, error) {
	t, err := g.file.GetCellType(g.name, cellName(col, row))
	if err != nil {
		return 0, err
	}
	switch t {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return cellText, nil
	case excelize.CellTypeDate:
		return cellDate, nil
	case excelize.CellTypeBool:
		return cellBool, nil
	default:
		// numbers are stored without an explicit type attribute
		return cellNumeric, nil
	}
}

// checkDimensions fails fast when the sheet is smaller than the layout requires
func (g *sheetGrid) checkDimensions(l Layout) error {
	if g.maxRow() < l.LastLocationRow {
		return formatErrorf(g.name, "", nil,
			"sheet has %d rows but the layout needs rows up to %d", g.maxRow(), l.LastLocationRow)
	}
	if g.maxCol < l.FirstDateCol {
		return formatErrorf(g.name, "", nil,
			"sheet has %d columns but the layout needs measurements from column %d", g.maxCol, l.FirstDateCol)
	}
	return nil
}

// dates reads the date row left to right, skipping empty cells
func (g *sheetGrid) dates(l Layout) ([]time.Time, error) {
	var dates []time.Time
	for col := l.FirstDateCol; col <= g.maxCol; col++ {
		raw := strings.TrimSpace(g.raw(col, l.DateRow))
		if raw == "" {
			continue
		}
		cell := cellName(col, l.DateRow)
		kind, err := g.kind(col, l.DateRow)
		if err != nil {
			return nil, formatErrorf(g.name, cell, err, "failed to read date cell")
		}

		var date time.Time
		switch kind {
		case cellNumeric:
			date, err = g.serialDate(raw)
		case cellText, cellDate:
			date, err = parseTextDate(raw)
		default:
			err = fmt.Errorf("unexpected value %q", raw)
		}
		if err != nil {
			return nil, formatErrorf(g.name, cell, err, "invalid date")
		}
		dates = append(dates, date)
	}
	return dates, nil
}

func (g *sheetGrid) serialDate(raw string) (time.Time, error) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, err
	}
	return excelize.ExcelDateToTime(serial, g.date1904)
}

func parseTextDate(raw string) (time.Time, error) {
	for _, layout := range textDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// locations reads the location column top to bottom and returns the location keys
func (g *sheetGrid) locations(l Layout) ([]string, error) {
	keys := make([]string, 0, l.LocationCount())
	seen := make(map[string]string, l.LocationCount())

	for row := l.FirstLocationRow; row <= l.LastLocationRow; row++ {
		cell := cellName(l.LocationCol, row)
		raw := g.raw(l.LocationCol, row)
		if strings.TrimSpace(raw) == "" {
			return nil, formatErrorf(g.name, cell, nil, "empty location cell")
		}
		kind, err := g.kind(l.LocationCol, row)
		if err != nil {
			return nil, formatErrorf(g.name, cell, err, "failed to read location cell")
		}
		if kind != cellText {
			return nil, formatErrorf(g.name, cell, nil, "location %q is not text", raw)
		}

		key := entities.LocationKey(raw)
		if prev, ok := seen[key]; ok {
			return nil, formatErrorf(g.name, cell, nil, "duplicate location %q (also at %s)", key, prev)
		}
		seen[key] = cell
		keys = append(keys, key)
	}
	return keys, nil
}

// measurements reads one column per date over the location rows. Columns whose
// first location cell is empty are trailing columns and are skipped.
func (g *sheetGrid) measurements(l Layout) ([][]entities.Reading, error) {
	var columns [][]entities.Reading
	for col := l.FirstDateCol; col <= g.maxCol; col++ {
		if strings.TrimSpace(g.raw(col, l.FirstLocationRow)) == "" {
			continue
		}

		column := make([]entities.Reading, 0, l.LocationCount())
		for row := l.FirstLocationRow; row <= l.LastLocationRow; row++ {
			value, err := g.value(col, row)
			if err != nil {
				return nil, formatErrorf(g.name, cellName(col, row), err, "invalid measurement")
			}
			reading, err := CleanseValue(value)
			if err != nil {
				return nil, formatErrorf(g.name, cellName(col, row), err, "invalid measurement")
			}
			column = append(column, reading)
		}
		columns = append(columns, column)
	}
	return columns, nil
}

// value returns the typed value of a measurement cell: nil, int or string
func (g *sheetGrid) value(col, row int) (any, error) {
	raw := g.raw(col, row)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	kind, err := g.kind(col, row)
	if err != nil {
		return nil, err
	}
	switch kind {
	case cellNumeric:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("number %q is not an integer", raw)
		}
		return n, nil
	case cellText:
		return raw, nil
	default:
		return nil, fmt.Errorf("unexpected value %q", raw)
	}
}

// readSheet extracts the three axes of one sheet and assembles them by position
func readSheet(f *excelize.File, name string, l Layout, date1904 bool) (entities.Readings, error) {
	g, err := loadSheet(f, name, date1904)
	if err != nil {
		return nil, err
	}
	if err := g.checkDimensions(l); err != nil {
		return nil, err
	}

	dates, err := g.dates(l)
	if err != nil {
		return nil, err
	}
	locations, err := g.locations(l)
	if err != nil {
		return nil, err
	}
	columns, err := g.measurements(l)
	if err != nil {
		return nil, err
	}

	log.Printf("Sheet %q: found %d dates, %d locations, %d measurement columns",
		name, len(dates), len(locations), len(columns))

	return assemble(name, dates, locations, columns)
}

// assemble zips dates with measurement columns and locations with column entries
func assemble(sheet string, dates []time.Time, locations []string, columns [][]entities.Reading) (entities.Readings, error) {
	if len(dates) != len(columns) {
		return nil, formatErrorf(sheet, "", nil,
			"found %d dates but %d measurement columns", len(dates), len(columns))
	}

	results := make(entities.Readings, len(dates))
	for i, date := range dates {
		column := columns[i]
		if len(column) != len(locations) {
			return nil, formatErrorf(sheet, "", nil,
				"measurement column for %s has %d values for %d locations",
				entities.DateKey(date), len(column), len(locations))
		}

		key := entities.DateKey(date)
		if _, ok := results[key]; ok {
			return nil, formatErrorf(sheet, "", nil, "duplicate date %s", key)
		}

		row := make(map[string]entities.Reading, len(locations))
		for j, location := range locations {
			row[location] = column[j]
		}
		results[key] = row
	}
	return results, nil
}
