package scan

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type fakeSource struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSource) Frame(ctx context.Context) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// scriptedDecoder plays back one payload per frame; an empty entry means
// the frame held no code. Each call is signalled on called so tests can
// advance the clock in lockstep with the loop.
type scriptedDecoder struct {
	mu     sync.Mutex
	script []string
	calls  int
	called chan struct{}
}

func newScriptedDecoder(script ...string) *scriptedDecoder {
	return &scriptedDecoder{script: script, called: make(chan struct{}, len(script)+1)}
}

func (d *scriptedDecoder) DecodeFrame(img image.Image) (string, error) {
	d.mu.Lock()
	var raw string
	if d.calls < len(d.script) {
		raw = d.script[d.calls]
	}
	d.calls++
	d.mu.Unlock()

	d.called <- struct{}{}
	if raw == "" {
		return "", ErrNoCode
	}
	return raw, nil
}

type runResult struct {
	id  string
	err error
}

func startRun(ctx context.Context, c *Controller) chan runResult {
	done := make(chan runResult, 1)
	go func() {
		id, err := c.Run(ctx)
		done <- runResult{id, err}
	}()
	return done
}

// step advances the fake clock one interval and waits for the loop to
// consume the resulting frame.
func step(t *testing.T, clock *clockwork.FakeClock, dec *scriptedDecoder) {
	t.Helper()
	clock.Advance(DefaultInterval)
	select {
	case <-dec.called:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for a frame to be processed")
	}
}

func TestRunDeliversFirstSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{}
	dec := newScriptedDecoder("", "https://share.example/?session=abc%2F1")
	c := NewController(src, dec, clock, 0)

	done := startRun(context.Background(), c)

	clock.BlockUntil(1)
	step(t, clock, dec)
	step(t, clock, dec)

	res := <-done
	if res.err != nil {
		t.Fatalf("Run failed: %v", res.err)
	}
	if res.id != "abc/1" {
		t.Errorf("session id = %q, want %q", res.id, "abc/1")
	}
	if !src.isClosed() {
		t.Error("Expected frame source to be released")
	}
}

func TestRunAcceptsBarePayload(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{}
	dec := newScriptedDecoder("plain-session-id")
	c := NewController(src, dec, clock, 0)

	done := startRun(context.Background(), c)

	clock.BlockUntil(1)
	step(t, clock, dec)

	res := <-done
	if res.err != nil {
		t.Fatalf("Run failed: %v", res.err)
	}
	if res.id != "plain-session-id" {
		t.Errorf("session id = %q", res.id)
	}
}

func TestRunSurfacesInvalidAndContinues(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{}
	dec := newScriptedDecoder("   ", "https://share.example/?session=ok")
	c := NewController(src, dec, clock, 0)

	invalid := make(chan string, 1)
	c.OnInvalid = func(raw string) { invalid <- raw }

	done := startRun(context.Background(), c)

	clock.BlockUntil(1)
	step(t, clock, dec)
	step(t, clock, dec)

	res := <-done
	if res.err != nil {
		t.Fatalf("Run failed: %v", res.err)
	}
	if res.id != "ok" {
		t.Errorf("session id = %q", res.id)
	}

	select {
	case raw := <-invalid:
		if raw != "   " {
			t.Errorf("invalid payload = %q", raw)
		}
	default:
		t.Error("Expected the unusable payload to be surfaced")
	}
}

func TestRunDeduplicatesRepeatedPayload(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{}
	dec := newScriptedDecoder("stale", "stale", "fresh")
	c := NewController(src, dec, clock, 0)

	var mu sync.Mutex
	checked := []string{}
	c.Validate = func(ctx context.Context, sessionID string) (bool, error) {
		mu.Lock()
		checked = append(checked, sessionID)
		mu.Unlock()
		return sessionID == "fresh", nil
	}
	c.OnInvalid = func(string) {}

	done := startRun(context.Background(), c)

	clock.BlockUntil(1)
	step(t, clock, dec)
	step(t, clock, dec)
	step(t, clock, dec)

	res := <-done
	if res.err != nil {
		t.Fatalf("Run failed: %v", res.err)
	}
	if res.id != "fresh" {
		t.Errorf("session id = %q", res.id)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(checked) != 2 {
		t.Fatalf("Expected 2 validation calls, got %d: %v", len(checked), checked)
	}
	if checked[0] != "stale" || checked[1] != "fresh" {
		t.Errorf("validated = %v", checked)
	}
}

func TestRunValidateErrorStopsLoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{}
	dec := newScriptedDecoder("some-session")
	c := NewController(src, dec, clock, 0)

	boom := errors.New("backend down")
	c.Validate = func(ctx context.Context, sessionID string) (bool, error) {
		return false, boom
	}

	done := startRun(context.Background(), c)

	clock.BlockUntil(1)
	step(t, clock, dec)

	res := <-done
	if !errors.Is(res.err, boom) {
		t.Fatalf("Run error = %v, want wrapped backend error", res.err)
	}
	if !src.isClosed() {
		t.Error("Expected frame source to be released on error")
	}
}

func TestRunCancelReleasesSource(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{}
	dec := newScriptedDecoder()
	c := NewController(src, dec, clock, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(ctx, c)

	clock.BlockUntil(1)
	cancel()

	res := <-done
	if !errors.Is(res.err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", res.err)
	}
	if res.id != "" {
		t.Errorf("Expected no session id, got %q", res.id)
	}
	if !src.isClosed() {
		t.Error("Expected frame source to be released on cancel")
	}
}
