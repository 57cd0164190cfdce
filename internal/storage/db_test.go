package storage

import (
	"testing"
	"time"
)

// TestRebind verifies ? placeholders become numbered only for PostgreSQL.
func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	got := pg.rebind(`SELECT * FROM sets WHERE id = ? AND reps > ?`)
	if want := `SELECT * FROM sets WHERE id = $1 AND reps > $2`; got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	lite := &DB{driver: DriverSQLite}
	if got := lite.rebind(`id = ?`); got != `id = ?` {
		t.Errorf("sqlite rebind = %q", got)
	}
}

// TestNullTimeScan verifies both native and text timestamps decode to UTC.
func TestNullTimeScan(t *testing.T) {
	want := time.Date(2025, 4, 5, 6, 7, 8, 123456000, time.UTC)

	var n nullTime
	if err := n.Scan(want.Format(sqliteTimeLayout)); err != nil {
		t.Fatalf("Scan(text): %v", err)
	}
	if !n.Valid || !n.Time.Equal(want) {
		t.Errorf("text scan = %v, want %v", n.Time, want)
	}

	if err := n.Scan(want.In(time.FixedZone("CET", 3600))); err != nil {
		t.Fatalf("Scan(time): %v", err)
	}
	if n.Time.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", n.Time.Location())
	}

	if err := n.Scan(nil); err != nil || n.Valid || n.ptr() != nil {
		t.Errorf("nil scan = %+v, %v", n, err)
	}
	if err := n.Scan("yesterday"); err == nil {
		t.Error("expected error for unparseable text")
	}
}
