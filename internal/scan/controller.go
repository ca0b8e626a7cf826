// Package scan drives the receive-side capture loop: it polls a frame
// source, decodes QR payloads out of the frames, and resolves the first
// usable session identifier. The loop owns the frame source for its whole
// run and releases it on every exit path, so the camera never stays lit
// after scanning ends.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/caffeinepub/ofs/internal/locator"
)

// DefaultInterval is the frame sampling period.
const DefaultInterval = 100 * time.Millisecond

// ErrNoCode reports a frame that holds no decodable code. The loop treats
// it as routine and keeps sampling.
var ErrNoCode = errors.New("no code in frame")

// FrameSource produces frames from a camera or any other capture device.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Decoder extracts the text payload of a code from a single frame.
type Decoder interface {
	DecodeFrame(img image.Image) (string, error)
}

// Controller runs the scan loop. Frames are processed one at a time; a
// tick that fires while the previous frame is still in flight is dropped,
// never queued behind it.
type Controller struct {
	src      FrameSource
	dec      Decoder
	clock    clockwork.Clock
	interval time.Duration

	// Validate, when set, checks a candidate session with the backend
	// before it is delivered. A false result keeps the loop scanning.
	Validate func(ctx context.Context, sessionID string) (bool, error)

	// OnInvalid, when set, is called with the raw payload each time a
	// scanned code cannot be used. The loop continues afterwards.
	OnInvalid func(raw string)
}

// NewController creates a scan controller over the given source and
// decoder. A non-positive interval selects DefaultInterval.
func NewController(src FrameSource, dec Decoder, clock clockwork.Clock, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		src:      src,
		dec:      dec,
		clock:    clock,
		interval: interval,
	}
}

// Run samples frames until a usable session ID is found, then returns it
// exactly once. Cancelling ctx stops the loop with ctx.Err(). The frame
// source is closed before Run returns, whatever the outcome.
func (c *Controller) Run(ctx context.Context) (string, error) {
	defer c.src.Close()

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	// Last payload seen in the previous frame. A code sitting still in
	// front of the camera decodes identically every tick; re-checking it
	// each time would hammer the backend and spam OnInvalid.
	var last string

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.Chan():
			img, err := c.src.Frame(ctx)
			if err != nil {
				return "", fmt.Errorf("capturing frame: %w", err)
			}

			raw, err := c.dec.DecodeFrame(img)
			if err != nil {
				// No code, or an undecodable smudge. Either way the
				// code left the frame, so the dedupe window resets.
				last = ""
				continue
			}
			if raw == last {
				continue
			}
			last = raw

			id, ok := locator.Decode(raw)
			if !ok {
				c.notifyInvalid(raw)
				continue
			}

			if c.Validate != nil {
				valid, err := c.Validate(ctx, id)
				if err != nil {
					return "", fmt.Errorf("validating scanned session: %w", err)
				}
				if !valid {
					c.notifyInvalid(raw)
					continue
				}
			}

			return id, nil
		}
	}
}

func (c *Controller) notifyInvalid(raw string) {
	if c.OnInvalid != nil {
		c.OnInvalid(raw)
	}
}
