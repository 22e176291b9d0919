package history

import (
	"path/filepath"
	"testing"
	"time"

	"metaltracker/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(n int) string {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, n).Format(DateFormat)
}

func TestStore_RollingCap(t *testing.T) {
	s := newTestStore(t)

	// Record 35 distinct dates; only the 30 most recent survive.
	for i := 0; i < 35; i++ {
		if err := s.Record(model.Gold, day(i), float64(1000+i), "USD", model.TroyOunce); err != nil {
			t.Fatalf("Record day %d: %v", i, err)
		}
	}

	points, err := s.Read(model.Gold, Ascending)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(points) != MaxEntries {
		t.Fatalf("got %d entries, want %d", len(points), MaxEntries)
	}
	if points[0].Date != day(5) {
		t.Errorf("oldest surviving date = %s, want %s (oldest dropped first)", points[0].Date, day(5))
	}
	if points[len(points)-1].Date != day(34) {
		t.Errorf("newest date = %s, want %s", points[len(points)-1].Date, day(34))
	}
}

func TestStore_SameDateOverwrites(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record(model.Silver, day(0), 27.5, "USD", model.TroyOunce); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(model.Silver, day(0), 28.1, "USD", model.TroyOunce); err != nil {
		t.Fatalf("Record: %v", err)
	}

	points, err := s.Read(model.Silver, Ascending)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d entries, want 1 (same date must overwrite)", len(points))
	}
	if points[0].Price != 28.1 {
		t.Errorf("price = %v, want the later write's 28.1", points[0].Price)
	}
}

func TestStore_ReadOrder(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		s.Record(model.Gold, day(i), float64(i), "USD", model.TroyOunce)
	}

	asc, _ := s.Read(model.Gold, Ascending)
	if asc[0].Date != day(0) || asc[2].Date != day(2) {
		t.Errorf("ascending order wrong: %v", asc)
	}

	desc, _ := s.Read(model.Gold, Descending)
	if desc[0].Date != day(2) || desc[2].Date != day(0) {
		t.Errorf("descending order wrong: %v", desc)
	}
}

func TestStore_MetalsAreIndependent(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 32; i++ {
		s.Record(model.Gold, day(i), float64(i), "USD", model.TroyOunce)
	}
	s.Record(model.Silver, day(0), 27.5, "USD", model.TroyOunce)

	// Gold overflowing its cap must not trim silver's series.
	silver, _ := s.Read(model.Silver, Ascending)
	if len(silver) != 1 {
		t.Errorf("silver series length = %d, want 1", len(silver))
	}
	gold, _ := s.Read(model.Gold, Ascending)
	if len(gold) != MaxEntries {
		t.Errorf("gold series length = %d, want %d", len(gold), MaxEntries)
	}
}

func TestStore_Latest(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Latest(model.Gold)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if p != nil {
		t.Fatalf("Latest on empty series = %+v, want nil", p)
	}

	s.Record(model.Gold, day(0), 100, "USD", model.TroyOunce)
	s.Record(model.Gold, day(1), 200, "USD", model.TroyOunce)

	p, err = s.Latest(model.Gold)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if p == nil || p.Date != day(1) || p.Price != 200 {
		t.Errorf("Latest = %+v, want newest point", p)
	}
}

func TestStore_RejectsBadInput(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record(model.Gold, "July 1", 100, "USD", model.TroyOunce); err == nil {
		t.Error("expected error for non-calendar date key")
	}
	if err := s.Record(model.Gold, day(0), -1, "USD", model.TroyOunce); err == nil {
		t.Error("expected error for negative price")
	}
}
