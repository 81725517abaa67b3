package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"layeh.com/gopus"
)

// ErrStuck is returned by Send when the voice connection stops accepting
// frames for longer than the stuck threshold.
var ErrStuck = errors.New("voice connection stopped accepting audio")

const DefaultStuckThreshold = 10 * time.Second

// Encoder is satisfied by *gopus.Encoder.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

func NewEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	return enc, nil
}

// Control steers a running Send: pause, volume and position reporting.
// The zero value is not usable; call NewControl.
type Control struct {
	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
	seek    time.Duration
	seeking bool

	volume atomic.Int32
	offset atomic.Int64
	frames atomic.Int64
}

func NewControl(volume int) *Control {
	c := &Control{resumed: make(chan struct{})}
	close(c.resumed)
	c.volume.Store(int32(volume))
	return c
}

func (c *Control) SetVolume(volume int) {
	c.volume.Store(int32(volume))
}

func (c *Control) Volume() int {
	return int(c.volume.Load())
}

func (c *Control) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused == paused {
		return
	}
	c.paused = paused
	if paused {
		c.resumed = make(chan struct{})
	} else {
		close(c.resumed)
	}
}

func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Position is the playback offset: the segment start plus frames sent.
func (c *Control) Position() time.Duration {
	return time.Duration(c.offset.Load()) + time.Duration(c.frames.Load())*FrameDuration
}

// Restart marks the beginning of a new segment at offset.
func (c *Control) Restart(offset time.Duration) {
	c.offset.Store(int64(offset))
	c.frames.Store(0)
}

// RequestSeek records a pending seek for the playback loop to pick up.
func (c *Control) RequestSeek(position time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seek = position
	c.seeking = true
}

// TakeSeek returns and clears the pending seek.
func (c *Control) TakeSeek() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.seek, c.seeking
	c.seek, c.seeking = 0, false
	return pos, ok
}

func (c *Control) waitResumed(ctx context.Context) error {
	c.mu.Lock()
	ch := c.resumed
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send reads s16le PCM from src, encodes it and feeds the frames to out until
// src is exhausted (nil), ctx is done (ctx.Err()) or out blocks for longer
// than stuck (ErrStuck). A stuck value of zero uses DefaultStuckThreshold.
func Send(ctx context.Context, src io.Reader, out chan<- []byte, enc Encoder, ctl *Control, stuck time.Duration) error {
	if stuck <= 0 {
		stuck = DefaultStuckThreshold
	}

	pcmBuf := make([]byte, FrameSize*Channels*2)
	intBuf := make([]int16, FrameSize*Channels)

	timer := time.NewTimer(stuck)
	defer timer.Stop()

	for {
		if err := ctl.waitResumed(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := io.ReadFull(src, pcmBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read error: %w", err)
		}

		volume := ctl.Volume()
		for i := range intBuf {
			intBuf[i] = scale(int16(binary.LittleEndian.Uint16(pcmBuf[i*2:i*2+2])), volume)
		}

		opus, err := enc.Encode(intBuf, FrameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(stuck)

		select {
		case out <- opus:
			ctl.frames.Add(1)
		case <-timer.C:
			return ErrStuck
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// scale applies a volume percentage to one sample, clipping at the int16
// range.
func scale(sample int16, volume int) int16 {
	if volume == 100 {
		return sample
	}
	v := int32(sample) * int32(volume) / 100
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
