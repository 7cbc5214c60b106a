package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"tabload/internal/warehouse"
)

// openMemory builds a writer over an in-memory database and returns it with
// direct *sql.DB access for assertions.
func openMemory(t *testing.T) (*writer, *sql.DB) {
	t.Helper()

	w, err := New(context.Background(), warehouse.Config{
		Kind: "sqlite",
		DSN:  "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sw := w.(*writer)
	t.Cleanup(sw.Close)
	return sw, sw.db
}

func testRelation() *warehouse.Relation {
	return &warehouse.Relation{
		Columns: []string{"NAME", "AGE"},
		Rows: [][]sql.NullString{
			{warehouse.Text("Ann"), warehouse.Text("30")},
			{warehouse.Text("Bo"), warehouse.Null()},
		},
	}
}

func TestWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	w, db := openMemory(t)
	target := warehouse.Target{Table: "PEOPLE"}
	rel := testRelation()

	if err := w.EnsureTable(ctx, target, rel.Columns, false); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	n, err := w.WriteRows(ctx, target, rel, false)
	if err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if n != 2 {
		t.Fatalf("wrote %d rows, want 2", n)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "PEOPLE"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("table has %d rows, want 2", count)
	}

	var age sql.NullString
	if err := db.QueryRow(`SELECT "AGE" FROM "PEOPLE" WHERE "NAME" = 'Bo'`).Scan(&age); err != nil {
		t.Fatalf("select null cell: %v", err)
	}
	if age.Valid {
		t.Fatalf("AGE for Bo = %+v, want NULL", age)
	}
}

// TestEnsureTableOverwrite checks that overwrite drops existing rows while
// the append path keeps them.
func TestEnsureTableOverwrite(t *testing.T) {
	ctx := context.Background()
	w, db := openMemory(t)
	target := warehouse.Target{Table: "T"}
	rel := testRelation()

	if err := w.EnsureTable(ctx, target, rel.Columns, false); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if _, err := w.WriteRows(ctx, target, rel, false); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}

	// Append keeps existing rows.
	if err := w.EnsureTable(ctx, target, rel.Columns, false); err != nil {
		t.Fatalf("EnsureTable append: %v", err)
	}
	if _, err := w.WriteRows(ctx, target, rel, false); err != nil {
		t.Fatalf("WriteRows append: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "T"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Fatalf("after append table has %d rows, want 4", count)
	}

	// Overwrite starts from empty.
	if err := w.EnsureTable(ctx, target, rel.Columns, true); err != nil {
		t.Fatalf("EnsureTable overwrite: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM "T"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("after overwrite table has %d rows, want 0", count)
	}
}

func TestWriteRowsEmptyRelation(t *testing.T) {
	ctx := context.Background()
	w, _ := openMemory(t)
	target := warehouse.Target{Table: "E"}

	if err := w.EnsureTable(ctx, target, []string{"A"}, false); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	n, err := w.WriteRows(ctx, target, &warehouse.Relation{Columns: []string{"A"}}, false)
	if err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if n != 0 {
		t.Fatalf("wrote %d rows, want 0", n)
	}
}

func TestIdentQuoting(t *testing.T) {
	ctx := context.Background()
	w, db := openMemory(t)
	target := warehouse.Target{Table: `WEIRD"NAME`}

	rel := &warehouse.Relation{
		Columns: []string{`COL"A`},
		Rows:    [][]sql.NullString{{warehouse.Text("v")}},
	}
	if err := w.EnsureTable(ctx, target, rel.Columns, false); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if _, err := w.WriteRows(ctx, target, rel, false); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}

	var got string
	if err := db.QueryRow(`SELECT "COL""A" FROM "WEIRD""NAME"`).Scan(&got); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "v" {
		t.Fatalf("cell = %q, want v", got)
	}
}
