package ingest

import (
	"errors"
	"testing"
)

func TestCoerceForLoad(t *testing.T) {
	t.Parallel()

	table := &Table{
		File:            "people.csv",
		OriginalColumns: []string{"Name", "Age"},
		Rows: [][]string{
			{"Ann", "30"},
			{"Bo", ""},
			{"<NA>", "nan"},
			{"NaN", "None"},
		},
	}

	rel, err := CoerceForLoad(table, []string{"NAME", "AGE"})
	if err != nil {
		t.Fatalf("CoerceForLoad: %v", err)
	}

	if rel.ColumnCount() != 2 || rel.RowCount() != 4 {
		t.Fatalf("relation shape = %dx%d, want 2x4", rel.ColumnCount(), rel.RowCount())
	}
	if rel.Columns[0] != "NAME" || rel.Columns[1] != "AGE" {
		t.Fatalf("columns = %v", rel.Columns)
	}

	if got := rel.Rows[0][0]; !got.Valid || got.String != "Ann" {
		t.Fatalf("cell [0][0] = %+v, want text Ann", got)
	}
	for _, probe := range []struct{ r, c int }{
		{1, 1}, // empty string
		{2, 0}, // <NA>
		{2, 1}, // nan
		{3, 0}, // NaN
		{3, 1}, // None
	} {
		if cell := rel.Rows[probe.r][probe.c]; cell.Valid {
			t.Errorf("cell [%d][%d] = %+v, want NULL", probe.r, probe.c, cell)
		}
	}
}

func TestCoerceForLoadEmptyTable(t *testing.T) {
	t.Parallel()

	table := &Table{
		File:            "empty.csv",
		OriginalColumns: []string{"a"},
	}
	_, err := CoerceForLoad(table, []string{"A"})
	if !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("err = %v, want ErrEmptyTable", err)
	}
}

func TestCoerceForLoadWidthMismatch(t *testing.T) {
	t.Parallel()

	table := &Table{
		File:            "bad.csv",
		OriginalColumns: []string{"a", "b"},
		Rows:            [][]string{{"1", "2"}},
	}
	_, err := CoerceForLoad(table, []string{"A"})
	if err == nil || errors.Is(err, ErrEmptyTable) {
		t.Fatalf("err = %v, want width mismatch error", err)
	}
}

// TestCoerceForLoadCaseSensitiveTokens checks that only the exact null token
// spellings become NULL; different casings stay literal text.
func TestCoerceForLoadCaseSensitiveTokens(t *testing.T) {
	t.Parallel()

	table := &Table{
		File:            "tokens.csv",
		OriginalColumns: []string{"v"},
		Rows:            [][]string{{"NAN"}, {"none"}, {"null"}, {"NA"}},
	}
	rel, err := CoerceForLoad(table, []string{"V"})
	if err != nil {
		t.Fatalf("CoerceForLoad: %v", err)
	}
	for i, row := range rel.Rows {
		if !row[0].Valid {
			t.Errorf("row %d = NULL, want literal %q", i, table.Rows[i][0])
		}
	}
}
