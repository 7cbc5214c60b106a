package ingest

import "testing"

func TestCleanColumnName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "name", "NAME"},
		{"spaces", "first name", "FIRST_NAME"},
		{"hyphens", "unit-price", "UNIT_PRICE"},
		{"mixed run", "a -\t b", "A_B"},
		{"punctuation stripped", "Amount ($)", "AMOUNT_"},
		{"digit prefix", "2nd Name!", "_2ND_NAME"},
		{"surrounding space", "  City  ", "CITY"},
		{"empty", "", "UNNAMED_COLUMN"},
		{"only punctuation", "(!!)", "UNNAMED_COLUMN"},
		{"underscores kept", "a_b_c", "A_B_C"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := CleanColumnName(tc.in)
			if got != tc.want {
				t.Fatalf("CleanColumnName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

// TestCleanColumnNameIdempotent checks that cleaning an already-clean name is
// a no-op, so names can flow through the pipeline repeatedly without drift.
func TestCleanColumnNameIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"name", "2nd Name!", "  spaced out  ", "", "Amount ($)", "UNIT-price"}
	for _, in := range inputs {
		once := CleanColumnName(in)
		twice := CleanColumnName(once)
		if once != twice {
			t.Errorf("CleanColumnName not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCleanTableName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"filename with extension", "sales-report.csv", "SALES_REPORT_CSV"},
		{"stem", "sales report", "SALES_REPORT"},
		{"special characters", "q1/q2 (final)", "Q1_Q2__FINAL_"},
		{"digit prefix", "2024 totals", "_2024_TOTALS"},
		{"empty", "", "UNNAMED_TABLE"},
		{"already clean", "ORDERS", "ORDERS"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := CleanTableName(tc.in)
			if got != tc.want {
				t.Fatalf("CleanTableName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCleanTableNameIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"sales-report.csv", "", "2024 totals", "q1/q2 (final)"}
	for _, in := range inputs {
		once := CleanTableName(in)
		twice := CleanTableName(once)
		if once != twice {
			t.Errorf("CleanTableName not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
