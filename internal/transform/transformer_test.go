package transform

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/abelzeko/maiwar-wq/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_EndToEnd(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l, testSheet{
		name:      "results",
		dates:     []any{day(2023, time.January, 1), day(2023, time.January, 2)},
		locations: []any{"Site A", "Site B"},
		grid:      [][]any{{10, "<1"}, {20, "NT"}},
	})

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(data)
	require.NoError(t, err)

	assert.Equal(t, entities.Measurements{
		"2023-01-01": {"site-a": 10, "site-b": 20},
		"2023-01-02": {"site-a": 1, "site-b": -1},
	}, m)

	out, err := entities.MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, `{"2023-01-01":{"site-a":10,"site-b":20},"2023-01-02":{"site-a":1,"site-b":-1}}`, string(out))
}

func TestTransform_KeepsReadingKinds(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l, testSheet{
		name:      "results",
		dates:     []any{day(2023, time.January, 1), day(2023, time.January, 2)},
		locations: []any{"Site A", "Site B"},
		grid:      [][]any{{10, "<1"}, {">2,400", "NT"}},
	})

	readings, err := newTestTransformer(t, l, CollisionOverwrite).Transform(data)
	require.NoError(t, err)

	assert.Equal(t, entities.Reading{Kind: entities.KindExact, Value: 10}, readings["2023-01-01"]["site-a"])
	assert.Equal(t, entities.Reading{Kind: entities.KindAbove, Value: 2400}, readings["2023-01-01"]["site-b"])
	assert.Equal(t, entities.Reading{Kind: entities.KindBelow, Value: 1}, readings["2023-01-02"]["site-a"])
	assert.Equal(t, entities.Reading{Kind: entities.KindNotTested, Value: -1}, readings["2023-01-02"]["site-b"])
}

func TestTransform_AxisAlignment(t *testing.T) {
	const dates, locations = 3, 4

	l := DefaultLayout()
	l.LastLocationRow = l.FirstLocationRow + locations - 1

	s := testSheet{name: "results"}
	for i := 0; i < dates; i++ {
		s.dates = append(s.dates, day(2023, time.March, 1+7*i))
	}
	for j := 0; j < locations; j++ {
		s.locations = append(s.locations, fmt.Sprintf("Site %c", 'A'+j))
		row := make([]any, dates)
		for i := 0; i < dates; i++ {
			row[i] = 100*j + i
		}
		s.grid = append(s.grid, row)
	}

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(workbookBytes(t, l, s))
	require.NoError(t, err)

	require.Len(t, m, dates)
	for i := 0; i < dates; i++ {
		key := entities.DateKey(s.dates[i].(time.Time))
		require.Len(t, m[key], locations, "date %s", key)
		for j := 0; j < locations; j++ {
			loc := entities.LocationKey(s.locations[j].(string))
			assert.Equal(t, s.grid[j][i], m[key][loc], "date %s location %s", key, loc)
		}
	}
}

func TestTransform_DefaultLayout(t *testing.T) {
	l := DefaultLayout()
	s := testSheet{
		name:  "2023 results",
		dates: []any{day(2023, time.February, 7)},
	}
	for j := 0; j < l.LocationCount(); j++ {
		s.locations = append(s.locations, fmt.Sprintf("Reach %d", j+1))
		s.grid = append(s.grid, []any{j})
	}

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(workbookBytes(t, l, s))
	require.NoError(t, err)

	require.Len(t, m["2023-02-07"], 11)
	assert.Equal(t, 0, m["2023-02-07"]["reach-1"])
	assert.Equal(t, 10, m["2023-02-07"]["reach-11"])
}

func TestTransform_TrailingColumnExcluded(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l, testSheet{
		name:      "results",
		dates:     []any{day(2023, time.January, 1), day(2023, time.January, 2)},
		locations: []any{"Site A", "Site B"},
		grid:      [][]any{{10, 11}, {20, 21}},
		// column I has no date and no value on the first location row
		extra: map[string]any{"I9": 99, "J9": "NT"},
	})

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(data)
	require.NoError(t, err)

	assert.Equal(t, entities.Measurements{
		"2023-01-01": {"site-a": 10, "site-b": 20},
		"2023-01-02": {"site-a": 11, "site-b": 21},
	}, m)
}

func TestTransform_ZeroOnFirstLocationIsData(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l, testSheet{
		name:      "results",
		dates:     []any{day(2023, time.January, 1), day(2023, time.January, 2)},
		locations: []any{"Site A", "Site B"},
		grid:      [][]any{{0, 3}, {4, 5}},
	})

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(data)
	require.NoError(t, err)
	assert.Equal(t, 0, m["2023-01-01"]["site-a"])
	assert.Len(t, m, 2)
}

func TestTransform_TextDates(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l, testSheet{
		name:      "results",
		dates:     []any{"2023-03-01", "8/03/2023"},
		locations: []any{"Site A", "Site B"},
		grid:      [][]any{{1, 2}, {3, 4}},
	})

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(data)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2023-03-01", "2023-03-08"}, m.Dates())
}

func TestTransform_SheetSelection(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l,
		testSheet{name: "Summary", extra: map[string]any{"B2": "not a results sheet"}},
		testSheet{
			name:      "Results 2023",
			dates:     []any{day(2023, time.May, 2)},
			locations: []any{"Site A", "Site B"},
			grid:      [][]any{{1}, {2}},
		},
		testSheet{name: "notes", extra: map[string]any{"A5": "<oops"}},
	)

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(data)
	require.NoError(t, err)
	assert.Equal(t, entities.Measurements{"2023-05-02": {"site-a": 1, "site-b": 2}}, m)
}

func TestSelectSheets(t *testing.T) {
	tr := newTestTransformer(t, DefaultLayout(), CollisionOverwrite)

	got := tr.SelectSheets([]string{"Summary", "2023 Results", "notes", "results-raw", "old-results", "Results 2024"})
	assert.Equal(t, []string{"2023 Results", "results-raw", "old-results", "Results 2024"}, got)
	assert.Empty(t, tr.SelectSheets([]string{"Summary", "notes"}))
}

func TestTransform_MergesDisjointSheets(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l,
		testSheet{
			name:      "results 2022",
			dates:     []any{day(2022, time.December, 20)},
			locations: []any{"Site A", "Site B"},
			grid:      [][]any{{5}, {6}},
		},
		testSheet{
			name:      "results 2023",
			dates:     []any{day(2023, time.January, 3), day(2023, time.January, 10)},
			locations: []any{"Site A", "Site B"},
			grid:      [][]any{{7, 8}, {9, "<1"}},
		},
	)

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(data)
	require.NoError(t, err)
	assert.Equal(t, entities.Measurements{
		"2022-12-20": {"site-a": 5, "site-b": 6},
		"2023-01-03": {"site-a": 7, "site-b": 9},
		"2023-01-10": {"site-a": 8, "site-b": 1},
	}, m)
}

func collidingSheets() []testSheet {
	return []testSheet{
		{
			name:      "results old",
			dates:     []any{day(2023, time.January, 3), day(2023, time.January, 10)},
			locations: []any{"Site A", "Site B"},
			grid:      [][]any{{1, 2}, {3, 4}},
		},
		{
			name:      "results new",
			dates:     []any{day(2023, time.January, 10)},
			locations: []any{"Site C", "Site D"},
			grid:      [][]any{{50}, {60}},
		},
	}
}

func TestTransform_CollisionOverwrite(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l, collidingSheets()...)

	m, err := newTestTransformer(t, l, CollisionOverwrite).TransformMeasurements(data)
	require.NoError(t, err)

	// the later sheet replaces the whole date, no per-location merge
	assert.Equal(t, entities.Measurements{
		"2023-01-03": {"site-a": 1, "site-b": 3},
		"2023-01-10": {"site-c": 50, "site-d": 60},
	}, m)
}

func TestTransform_CollisionFail(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l, collidingSheets()...)

	_, err := newTestTransformer(t, l, CollisionFail).Transform(data)
	require.ErrorIs(t, err, ErrFormat)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "results new", fe.Sheet)
	assert.Contains(t, fe.Error(), "2023-01-10")
}

func TestTransform_FormatErrors(t *testing.T) {
	l := smallLayout()
	twoDates := []any{day(2023, time.January, 1), day(2023, time.January, 2)}
	sites := []any{"Site A", "Site B"}

	tests := []struct {
		name     string
		sheet    testSheet
		wantCell string
		wantText string
	}{
		{
			name:     "date without measurements",
			sheet:    testSheet{name: "results", dates: twoDates, locations: sites, grid: [][]any{{1, 2}, {3, 4}}, extra: map[string]any{"I7": day(2023, time.January, 3)}},
			wantText: "found 3 dates but 2 measurement columns",
		},
		{
			name:     "measurements without date",
			sheet:    testSheet{name: "results", dates: twoDates, locations: sites, grid: [][]any{{1, 2, 5}, {3, 4, 6}}},
			wantText: "found 2 dates but 3 measurement columns",
		},
		{
			name:     "decimal measurement",
			sheet:    testSheet{name: "results", dates: twoDates, locations: sites, grid: [][]any{{1, 2}, {3, 4.5}}},
			wantCell: "H9",
		},
		{
			name:     "bad threshold",
			sheet:    testSheet{name: "results", dates: twoDates, locations: sites, grid: [][]any{{1, "<x"}, {3, 4}}},
			wantCell: "H8",
		},
		{
			name:     "empty interior measurement",
			sheet:    testSheet{name: "results", dates: twoDates, locations: sites, grid: [][]any{{1, 2}, {nil, 4}}},
			wantCell: "G9",
		},
		{
			name:     "empty location",
			sheet:    testSheet{name: "results", dates: twoDates, locations: []any{"Site A", nil}, grid: [][]any{{1, 2}, {3, 4}}},
			wantCell: "C9",
		},
		{
			name:     "numeric location",
			sheet:    testSheet{name: "results", dates: twoDates, locations: []any{"Site A", 42}, grid: [][]any{{1, 2}, {3, 4}}},
			wantCell: "C9",
		},
		{
			name:     "duplicate location",
			sheet:    testSheet{name: "results", dates: twoDates, locations: []any{"Site A", "site a"}, grid: [][]any{{1, 2}, {3, 4}}},
			wantText: "duplicate location",
		},
		{
			name:     "duplicate date",
			sheet:    testSheet{name: "results", dates: []any{day(2023, time.January, 1), day(2023, time.January, 1)}, locations: sites, grid: [][]any{{1, 2}, {3, 4}}},
			wantText: "duplicate date 2023-01-01",
		},
		{
			name:     "unrecognised date",
			sheet:    testSheet{name: "results", dates: []any{"Week 1", "Week 2"}, locations: sites, grid: [][]any{{1, 2}, {3, 4}}},
			wantCell: "G7",
		},
		{
			name:     "too few columns",
			sheet:    testSheet{name: "results", locations: sites},
			wantText: "columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := workbookBytes(t, l, tt.sheet)
			_, err := newTestTransformer(t, l, CollisionOverwrite).Transform(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFormat), "expected a format error, got %v", err)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "results", fe.Sheet)
			if tt.wantCell != "" {
				assert.Equal(t, tt.wantCell, fe.Cell)
			}
			if tt.wantText != "" {
				assert.Contains(t, fe.Error(), tt.wantText)
			}
		})
	}
}

func TestTransform_SheetSmallerThanLayout(t *testing.T) {
	small := smallLayout()
	data := workbookBytes(t, small, testSheet{
		name:      "results",
		dates:     []any{day(2023, time.January, 1)},
		locations: []any{"Site A", "Site B"},
		grid:      [][]any{{1}, {2}},
	})

	_, err := newTestTransformer(t, DefaultLayout(), CollisionOverwrite).Transform(data)
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "rows up to 18")
}

func TestTransform_NoResultsSheet(t *testing.T) {
	l := smallLayout()
	data := workbookBytes(t, l, testSheet{name: "Summary"})

	_, err := newTestTransformer(t, l, CollisionOverwrite).Transform(data)
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), `no sheet name contains "results"`)
}

func TestTransform_NotAWorkbook(t *testing.T) {
	_, err := newTestTransformer(t, DefaultLayout(), CollisionOverwrite).Transform([]byte("<html>not a spreadsheet</html>"))
	require.ErrorIs(t, err, ErrFormat)
}

func TestNewTransformer_InvalidOptions(t *testing.T) {
	l := DefaultLayout()
	l.LastLocationRow = 2
	_, err := NewTransformer(Options{Layout: l})
	require.Error(t, err)

	_, err = NewTransformer(Options{Layout: DefaultLayout(), OnDateCollision: "merge"})
	require.Error(t, err)

	tr, err := NewTransformer(Options{Layout: DefaultLayout()})
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), tr.Layout())
}
