package shutdown

import (
	"errors"
	"testing"
)

type fakeCloser struct {
	closed bool
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed = true
	return f.err
}

func TestRunExecutesInLIFOOrder(t *testing.T) {
	c := New()
	var order []int
	c.Register(func() { order = append(order, 1) })
	c.Register(func() { order = append(order, 2) })
	c.Register(func() { order = append(order, 3) })

	c.Run()

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	c := New()
	calls := 0
	c.Register(func() { calls++ })

	c.Run()
	c.Run()
	c.Run()

	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestRunContinuesAfterPanic(t *testing.T) {
	c := New()
	second := false
	c.Register(func() { second = true })
	c.Register(func() { panic("boom") })

	c.Run()

	if !second {
		t.Fatal("expected callback registered before the panicking one to still run")
	}
}

func TestRegisterCloserInvokesClose(t *testing.T) {
	c := New()
	fc := &fakeCloser{err: errors.New("ignored")}
	c.RegisterCloser(fc)

	c.Run()

	if !fc.closed {
		t.Fatal("expected Close to be invoked")
	}
}

type fakeWriter struct {
	synced, closed bool
}

func (f *fakeWriter) Sync() error  { f.synced = true; return nil }
func (f *fakeWriter) Close() error { f.closed = true; return nil }

// TestRunOrdersBucketsCallbacksThenPTYThenWritersThenLoggers pins down
// spec.md §4.C's fixed teardown pipeline regardless of registration
// order: callbacks, then the PTY manager, then writers, then loggers.
func TestRunOrdersBucketsCallbacksThenPTYThenWritersThenLoggers(t *testing.T) {
	c := New()
	var order []string

	lg := &fakeCloser{}
	c.RegisterLogger(&trackingCloser{fakeCloser: lg, order: &order, label: "logger"})
	w := &fakeWriter{}
	c.RegisterWriter(&trackingWriter{fakeWriter: w, order: &order})
	c.RegisterPTYManager(func() { order = append(order, "pty") })
	c.Register(func() { order = append(order, "callback") })

	c.Run()

	want := []string{"callback", "pty", "writer", "logger"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
	if !w.synced || !w.closed {
		t.Fatal("expected writer to be synced and closed")
	}
}

type trackingCloser struct {
	*fakeCloser
	order *[]string
	label string
}

func (t *trackingCloser) Close() error {
	*t.order = append(*t.order, t.label)
	return t.fakeCloser.Close()
}

type trackingWriter struct {
	*fakeWriter
	order *[]string
}

func (t *trackingWriter) Close() error {
	*t.order = append(*t.order, "writer")
	return t.fakeWriter.Close()
}
