package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/caffeinepub/ofs/internal/api"
	"github.com/caffeinepub/ofs/internal/ledger"
	"github.com/caffeinepub/ofs/internal/locator"
	"github.com/caffeinepub/ofs/internal/registry"
	"github.com/caffeinepub/ofs/internal/session"
	"github.com/caffeinepub/ofs/internal/testutil"
)

// newTestServer wires the real API stack behind an httptest server.
func newTestServer(t *testing.T) (*Client, *clockwork.FakeClock) {
	t.Helper()

	store := testutil.NewMockStorage()
	clock := clockwork.NewFakeClock()
	reg := registry.New(store, clock, registry.Options{SingleRedemption: true})

	l, err := ledger.Open("")
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	e := echo.New()
	handlers := api.NewHandlers(&api.Dependencies{
		Store:         store,
		Registry:      reg,
		Ledger:        l,
		DefaultExpiry: 5 * time.Minute,
		Version:       "test",
	})
	api.RegisterRoutes(e, handlers)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return New(srv.URL, ""), clock
}

func TestClientSessionLifecycle(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	md, err := c.UploadBytes(ctx, "a.txt", "text/plain", []byte("hello"))
	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}

	id, err := c.CreateSession(ctx, md.ID, time.Minute)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	s, err := c.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if s.FileID != md.ID || !s.Valid {
		t.Errorf("session = %+v", s)
	}

	valid, err := c.ValidateSession(ctx, id)
	if err != nil || !valid {
		t.Fatalf("ValidateSession = %v, %v; want true", valid, err)
	}

	got, err := c.RedeemSession(ctx, id)
	if err != nil {
		t.Fatalf("RedeemSession failed: %v", err)
	}
	if got == nil || got.ID != md.ID {
		t.Errorf("redeemed metadata = %+v", got)
	}

	// Consumed on first redemption.
	again, err := c.RedeemSession(ctx, id)
	if err != nil {
		t.Fatalf("Second RedeemSession errored: %v", err)
	}
	if again != nil {
		t.Error("Expected nil metadata after the session was consumed")
	}
}

func TestClientCreateSessionWithLocator(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	md, err := c.UploadBytes(ctx, "a.txt", "text/plain", []byte("x"))
	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}

	created, err := c.CreateSessionWithLocator(ctx, md.ID, time.Minute)
	if err != nil {
		t.Fatalf("CreateSessionWithLocator failed: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("Expected a session id")
	}

	// The server has no origin configured, so the link points back at
	// the host that served the request and round-trips to the session.
	if !strings.HasSuffix(created.LocatorURL, "/?session="+created.SessionID) {
		t.Errorf("locator = %q", created.LocatorURL)
	}
	id, ok := locator.Decode(created.LocatorURL)
	if !ok || id != created.SessionID {
		t.Errorf("Decode(%q) = %q, %v", created.LocatorURL, id, ok)
	}
}

func TestClientInvalidateSession(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	md, _ := c.UploadBytes(ctx, "a.txt", "text/plain", []byte("x"))
	id, _ := c.CreateSession(ctx, md.ID, time.Minute)

	if err := c.InvalidateSession(ctx, id); err != nil {
		t.Fatalf("InvalidateSession failed: %v", err)
	}
	valid, err := c.ValidateSession(ctx, id)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if valid {
		t.Error("Expected session to be invalid")
	}
}

func TestClientGetSessionUnknown(t *testing.T) {
	c, _ := newTestServer(t)

	_, err := c.GetSession(context.Background(), "never-existed")
	if !errors.Is(err, session.ErrNotAvailable) {
		t.Fatalf("GetSession error = %v, want ErrNotAvailable", err)
	}
}

func TestClientDownloadFile(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	content := "file payload"
	md, err := c.UploadFile(ctx, "doc.txt", strings.NewReader(content))
	if err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	if md.Name != "doc.txt" {
		t.Errorf("name = %q", md.Name)
	}

	gotMD, data, err := c.DownloadFile(ctx, md.ID)
	if err != nil {
		t.Fatalf("DownloadFile failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("content = %q, want %q", data, content)
	}
	if gotMD.SizeBytes != int64(len(content)) {
		t.Errorf("size = %d", gotMD.SizeBytes)
	}
}

func TestClientTransferHistory(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	rec, err := c.RecordTransfer(ctx, "", "bob", "file-1", "a.txt", 1500*time.Millisecond, true)
	if err != nil {
		t.Fatalf("RecordTransfer failed: %v", err)
	}
	if rec.DurationMs != 1500 {
		t.Errorf("duration = %d", rec.DurationMs)
	}

	records, err := c.History(ctx, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].ID != rec.ID || records[0].Receiver != "bob" {
		t.Errorf("record = %+v", records[0])
	}
}

// The client satisfies the session manager's Backend, so Manager can run
// against a live server end to end.
func TestClientBacksSessionManager(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	md, _ := c.UploadBytes(ctx, "a.txt", "text/plain", []byte("x"))

	mgr := session.NewManager(c, clockwork.NewRealClock(), "alice")
	id, err := mgr.Create(ctx, md.ID, time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	valid, err := mgr.Validate(ctx, id)
	if err != nil || !valid {
		t.Fatalf("Validate = %v, %v; want true", valid, err)
	}

	got, err := mgr.Redeem(ctx, id)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if got == nil || got.Name != "a.txt" {
		t.Errorf("redeemed = %+v", got)
	}
}
