package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// testSheet describes a results sheet laid out with smallLayout or DefaultLayout.
// grid rows follow locations and grid columns follow dates.
type testSheet struct {
	name      string
	dates     []any
	locations []any
	grid      [][]any
	// extra cells keyed by cell name, e.g. a trailing column
	extra map[string]any
}

// smallLayout is the default layout narrowed to two location rows
func smallLayout() Layout {
	l := DefaultLayout()
	l.LastLocationRow = 9
	return l
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func cell(t *testing.T, col, row int) string {
	t.Helper()
	name, err := excelize.CoordinatesToCellName(col, row)
	require.NoError(t, err)
	return name
}

func newWorkbook(t *testing.T, l Layout, sheets ...testSheet) *excelize.File {
	t.Helper()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}

		require.NoError(t, f.SetCellValue(s.name, "A1", "Water quality monitoring results"))
		require.NoError(t, f.SetCellValue(s.name, cell(t, l.LocationCol, l.DateRow), "Site"))

		for i, d := range s.dates {
			require.NoError(t, f.SetCellValue(s.name, cell(t, l.FirstDateCol+i, l.DateRow), d))
		}
		for j, loc := range s.locations {
			if loc == nil {
				continue
			}
			require.NoError(t, f.SetCellValue(s.name, cell(t, l.LocationCol, l.FirstLocationRow+j), loc))
		}
		for j, row := range s.grid {
			for i, v := range row {
				if v == nil {
					continue
				}
				require.NoError(t, f.SetCellValue(s.name, cell(t, l.FirstDateCol+i, l.FirstLocationRow+j), v))
			}
		}
		for name, v := range s.extra {
			require.NoError(t, f.SetCellValue(s.name, name, v))
		}
	}
	return f
}

func workbookBytes(t *testing.T, l Layout, sheets ...testSheet) []byte {
	t.Helper()
	buf, err := newWorkbook(t, l, sheets...).WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newTestTransformer(t *testing.T, l Layout, policy CollisionPolicy) *Transformer {
	t.Helper()
	tr, err := NewTransformer(Options{Layout: l, OnDateCollision: policy})
	require.NoError(t, err)
	return tr
}
