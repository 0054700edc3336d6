package transform

import (
	"bytes"
	"log"
	"strings"

	"github.com/abelzeko/maiwar-wq/internal/entities"
	"github.com/xuri/excelize/v2"
)

// Transformer converts results workbooks into readings keyed by date and location
type Transformer struct {
	layout Layout
	policy CollisionPolicy
}

// NewTransformer validates the options and creates a Transformer
func NewTransformer(opts Options) (*Transformer, error) {
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	policy, err := ParseCollisionPolicy(string(opts.OnDateCollision))
	if err != nil {
		return nil, err
	}
	return &Transformer{
		layout: opts.Layout,
		policy: policy,
	}, nil
}

// Layout returns the layout the transformer reads sheets with
func (t *Transformer) Layout() Layout {
	return t.layout
}

// Transform opens raw .xlsx bytes and reads every results sheet
func (t *Transformer) Transform(workbook []byte) (entities.Readings, error) {
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return nil, formatErrorf("", "", err, "failed to open workbook")
	}
	defer f.Close()

	return t.TransformFile(f)
}

// TransformFile reads every results sheet of an open workbook and merges them in
// workbook order. A date defined by more than one sheet is resolved by the
// collision policy.
func (t *Transformer) TransformFile(f *excelize.File) (entities.Readings, error) {
	names := f.GetSheetList()
	sheets := t.SelectSheets(names)
	if len(sheets) == 0 {
		return nil, formatErrorf("", "", nil, "no sheet name contains %q", t.layout.SheetNameContains)
	}
	log.Printf("Selected %d of %d sheets: %s", len(sheets), len(names), strings.Join(sheets, ", "))

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	all := entities.Readings{}
	for _, sheet := range sheets {
		results, err := readSheet(f, sheet, t.layout, date1904)
		if err != nil {
			return nil, err
		}
		if err := t.merge(all, results, sheet); err != nil {
			return nil, err
		}
	}

	log.Printf("Transformed workbook into %d dates", len(all))
	return all, nil
}

// SelectSheets returns the sheet names containing the layout's sheet name filter,
// ignoring case, in workbook order
func (t *Transformer) SelectSheets(names []string) []string {
	filter := strings.ToLower(t.layout.SheetNameContains)
	var selected []string
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), filter) {
			selected = append(selected, name)
		}
	}
	return selected
}

func (t *Transformer) merge(all, results entities.Readings, sheet string) error {
	for _, date := range results.Dates() {
		if _, ok := all[date]; ok {
			if t.policy == CollisionFail {
				return formatErrorf(sheet, "", nil, "date %s is already defined by an earlier sheet", date)
			}
			log.Printf("Warning: sheet %q redefines date %s, replacing earlier values", sheet, date)
		}
		all[date] = results[date]
	}
	return nil
}

// TransformMeasurements is Transform projected onto the published integer form
func (t *Transformer) TransformMeasurements(workbook []byte) (entities.Measurements, error) {
	readings, err := t.Transform(workbook)
	if err != nil {
		return nil, err
	}
	return readings.Measurements(), nil
}
