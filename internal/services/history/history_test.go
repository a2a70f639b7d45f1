package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "runtick/pkg/logx"

	"runtick/internal/timer"
)

func openTestStore(t *testing.T, maxRows int) *Store {
	t.Helper()
	st, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "runtick.db"),
		BusyTimeout: time.Second,
		MaxRows:     maxRows,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAppendAndRecent(t *testing.T) {
	st := openTestStore(t, 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		e := Entry{
			At:       time.Now(),
			Stats:    timer.Stats{Ticks: uint64(i * 10), CtxtSwitches: uint64(i)},
			Activity: "active",
		}
		if err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d rows, want 3", len(got))
	}
	// newest first
	if got[0].Stats.Ticks != 30 || got[2].Stats.Ticks != 10 {
		t.Fatalf("rows out of order: %+v", got)
	}
	if got[0].Activity != "active" {
		t.Fatalf("activity = %q, want active", got[0].Activity)
	}
	if got[0].At.IsZero() {
		t.Fatal("timestamp not round-tripped")
	}
}

func TestRecentLimit(t *testing.T) {
	st := openTestStore(t, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := st.Append(ctx, Entry{Stats: timer.Stats{Ticks: uint64(i)}}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	got, err := st.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d rows, want 2", len(got))
	}
}

func TestPruneKeepsNewestRows(t *testing.T) {
	st := openTestStore(t, 3)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		if err := st.Append(ctx, Entry{Stats: timer.Stats{Ticks: uint64(i)}}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := st.prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}
	got, err := st.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("prune left %d rows, want 3", len(got))
	}
	if got[0].Stats.Ticks != 10 || got[2].Stats.Ticks != 8 {
		t.Fatalf("prune kept the wrong rows: %+v", got)
	}
}

func TestClosedStore(t *testing.T) {
	var st *Store
	if err := st.Append(context.Background(), Entry{}); err != ErrClosed {
		t.Fatalf("Append on nil store = %v, want ErrClosed", err)
	}
	if _, err := st.Recent(context.Background(), 1); err != ErrClosed {
		t.Fatalf("Recent on nil store = %v, want ErrClosed", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close on nil store = %v", err)
	}
}

func TestRecorderWritesOnChange(t *testing.T) {
	st := openTestStore(t, 0)

	var ticks uint64
	snap := func() (timer.Stats, string) {
		ticks += 5
		return timer.Stats{Ticks: ticks}, "active"
	}
	rec := NewRecorder(st, snap, 10*time.Millisecond, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	got, err := st.Recent(context.Background(), 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("recorder wrote %d rows, want >= 2", len(got))
	}
}

func TestRecorderSkipsUnchangedStats(t *testing.T) {
	st := openTestStore(t, 0)

	snap := func() (timer.Stats, string) {
		return timer.Stats{Ticks: 42}, "idle"
	}
	rec := NewRecorder(st, snap, 5*time.Millisecond, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	got, err := st.Recent(context.Background(), 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("recorder wrote %d rows for unchanged stats, want 1", len(got))
	}
}
