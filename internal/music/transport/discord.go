// Package transport plays tracks into Discord voice channels through
// discordgo voice connections. It implements player.VoiceTransport.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	ErrNotConnected     = errors.New("voice connection is not established")
	errForcedDisconnect = errors.New("disconnected from the voice channel")
)

// StreamLocator returns the media URL ffmpeg should open for a track.
type StreamLocator interface {
	StreamURL(ctx context.Context, t track.Track) (string, error)
}

// Opener starts a PCM stream. *stream.FFmpeg satisfies it.
type Opener interface {
	Open(ctx context.Context, url string, seek time.Duration, live bool) (io.ReadCloser, error)
}

type Discord struct {
	session *discordgo.Session
	guildID string
	locator StreamLocator
	opener  Opener
	encoder func() (stream.Encoder, error)
	stuck   time.Duration
	log     *zap.Logger
	events  chan player.TransportEvent
	onClose func(*Discord)

	mu      sync.Mutex
	vc      *discordgo.VoiceConnection
	ctl     *stream.Control
	current track.Track
	cancel  context.CancelFunc
	segment context.CancelFunc
	done    chan struct{}
	volume  int
}

func (d *Discord) GuildID() string { return d.guildID }

func (d *Discord) Events() <-chan player.TransportEvent { return d.events }

// Connect joins the voice channel, deafened.
func (d *Discord) Connect(ctx context.Context, channelID string) error {
	if channelID == "" {
		return errors.New("voice channel ID is not set")
	}

	d.mu.Lock()
	if d.vc != nil && d.vc.ChannelID == channelID {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vc, err := d.session.ChannelVoiceJoin(d.guildID, channelID, false, true)
		ch <- result{vc, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("failed to join voice channel: %w", r.err)
		}
		d.mu.Lock()
		d.vc = r.vc
		d.mu.Unlock()
		d.log.Info("Joined voice channel", zap.String("channel", channelID))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Discord) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vc != nil
}

// Play starts t in the background. Exactly one end, stuck or error event
// follows.
func (d *Discord) Play(ctx context.Context, t track.Track) error {
	d.mu.Lock()
	vc := d.vc
	busy := d.done != nil
	d.mu.Unlock()

	if vc == nil {
		return ErrNotConnected
	}
	if busy {
		if err := d.Stop(); err != nil {
			return err
		}
	}

	url, err := d.streamURL(ctx, t)
	if err != nil {
		return err
	}
	enc, err := d.encoder()
	if err != nil {
		return err
	}

	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	d.ctl = stream.NewControl(d.volume)
	d.current = t
	d.cancel = cancel
	d.done = done
	ctl := d.ctl
	d.mu.Unlock()

	go d.run(playCtx, vc, t, url, enc, ctl, done)
	return nil
}

func (d *Discord) streamURL(ctx context.Context, t track.Track) (string, error) {
	if d.locator != nil {
		url, err := d.locator.StreamURL(ctx, t)
		if err != nil {
			return "", fmt.Errorf("locate stream for %q: %w", t.Title, err)
		}
		return url, nil
	}
	if t.StreamURL != "" {
		return t.StreamURL, nil
	}
	if t.URI != "" {
		return t.URI, nil
	}
	return "", fmt.Errorf("no stream location for %q", t.Title)
}

func (d *Discord) run(ctx context.Context, vc *discordgo.VoiceConnection, t track.Track, url string, enc stream.Encoder, ctl *stream.Control, done chan struct{}) {
	defer close(done)

	recovery := stream.NewRecovery()
	offset := time.Duration(0)
	started := false

	var err error
	for {
		segCtx, segCancel := context.WithCancel(ctx)
		d.mu.Lock()
		d.segment = segCancel
		d.mu.Unlock()

		var src io.ReadCloser
		src, err = d.opener.Open(segCtx, url, offset, t.IsStream)
		if err == nil {
			if !started {
				started = true
				d.emit(player.EventTrackStarted, t, nil)
			}
			ctl.Restart(offset)
			_ = vc.Speaking(true)
			err = stream.Send(segCtx, src, vc.OpusSend, enc, ctl, d.stuck)
			_ = vc.Speaking(false)
			src.Close()
		}
		segCancel()

		if ctx.Err() != nil {
			err = nil
			break
		}
		if pos, ok := ctl.TakeSeek(); ok {
			offset = pos
			continue
		}
		if err == nil && stream.EndedEarly(ctl.Position(), t.Length, t.IsStream) {
			err = errors.New("stream ended early")
		}
		if recovery.Retry(err) {
			offset = ctl.Position()
			d.log.Warn("Reopening stream",
				zap.String("track", t.Title),
				zap.Int("attempt", recovery.Attempts()),
				zap.Duration("position", offset),
				zap.Error(err))
			if fresh, lerr := d.streamURL(ctx, t); lerr == nil {
				url = fresh
			}
			continue
		}
		break
	}

	d.mu.Lock()
	if d.done == done {
		d.done = nil
		d.cancel = nil
		d.segment = nil
	}
	d.mu.Unlock()

	switch {
	case err == nil:
		d.emit(player.EventTrackEnded, t, nil)
	case errors.Is(err, stream.ErrStuck):
		d.emit(player.EventTrackStuck, t, err)
	default:
		d.emit(player.EventTrackError, t, err)
	}
}

// Stop ends the current track and waits for its playback goroutine.
func (d *Discord) Stop() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (d *Discord) SetPaused(paused bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctl == nil || d.done == nil {
		return player.ErrNoTrackPlaying
	}
	d.ctl.SetPaused(paused)
	return nil
}

func (d *Discord) Seek(position time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctl == nil || d.segment == nil {
		return player.ErrNoTrackPlaying
	}
	d.ctl.RequestSeek(position)
	d.segment()
	return nil
}

func (d *Discord) SetVolume(volume int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = volume
	if d.ctl != nil {
		d.ctl.SetVolume(volume)
	}
	return nil
}

func (d *Discord) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctl == nil {
		return 0
	}
	return d.ctl.Position()
}

// Disconnect stops playback and leaves the voice channel.
func (d *Discord) Disconnect() error {
	_ = d.Stop()

	d.mu.Lock()
	vc := d.vc
	d.vc = nil
	d.mu.Unlock()

	if d.onClose != nil {
		d.onClose(d)
	}
	if vc == nil {
		return nil
	}
	if err := vc.Disconnect(); err != nil {
		return fmt.Errorf("voice disconnect: %w", err)
	}
	d.log.Info("Left voice channel")
	return nil
}

// VoiceClosed reports a connection dropped from the Discord side.
func (d *Discord) VoiceClosed(reason error) {
	d.mu.Lock()
	d.vc = nil
	d.mu.Unlock()
	d.emit(player.EventWebsocketClosed, track.Track{}, reason)
}

// emit delivers ev without blocking the playback goroutine.
func (d *Discord) emit(typ player.EventType, t track.Track, err error) {
	ev := player.TransportEvent{Type: typ, GuildID: d.guildID, Track: t, Err: err}
	select {
	case d.events <- ev:
	default:
		d.log.Warn("Transport event dropped (channel full)", zap.Stringer("type", typ))
	}
}
