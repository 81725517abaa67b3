// Package player runs one playback session per guild.
//
// A Player owns a queue.Queue and a single loop goroutine (Run) that takes
// tracks off the queue, resolves catalog stubs, hands native tracks to the
// VoiceTransport and waits for the transport to report the end of each one.
// An empty queue is waited on for at most Options.IdleTimeout before the
// session tears itself down.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/track"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultIdleTimeout = 300 * time.Second
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultVolume      = 100
)

type Options struct {
	IdleTimeout time.Duration
	SettleDelay time.Duration
	Volume      int
	EmbedSize   EmbedSize

	// TerminateOnVoiceClose destroys the session when the transport reports
	// its voice websocket closed. Otherwise the event is only reported.
	TerminateOnVoiceClose bool
}

func DefaultOptions() Options {
	return Options{
		IdleTimeout: DefaultIdleTimeout,
		SettleDelay: DefaultSettleDelay,
		Volume:      DefaultVolume,
		EmbedSize:   EmbedLarge,
	}
}

func (o Options) normalize() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.Volume < 0 || o.Volume > MaxVolume {
		o.Volume = DefaultVolume
	}
	o.EmbedSize = ParseEmbedSize(string(o.EmbedSize))
	return o
}

// Config wires a Player to its collaborators.
type Config struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string

	Transport VoiceTransport
	Resolver  TrackResolver
	Messenger Messenger

	// Queue is created when nil.
	Queue   *queue.Queue
	Options Options
	Logger  *zap.Logger

	// OnClose runs once when the session is destroyed.
	OnClose func(*Player)
}

type Player struct {
	id      string
	guildID string

	transport VoiceTransport
	resolver  TrackResolver
	messenger Messenger
	queue     *queue.Queue
	opts      Options
	log       *zap.Logger
	onClose   func(*Player)

	mu                sync.Mutex
	voiceChannelID    string
	state             State
	current           *track.Track
	paused            bool
	volume            int
	textChannelID     string
	controllerID      string
	controllerChannel string

	// votes are the skip votes cast on votesFor.
	votes    map[string]struct{}
	votesFor *track.Track

	// admit orders enqueues against the idle teardown.
	admit sync.Mutex

	trackEnd    chan TransportEvent
	stop        chan struct{}
	done        chan struct{}
	started     atomic.Bool
	destroyOnce sync.Once
}

func New(cfg Config) *Player {
	opts := cfg.Options.normalize()
	q := cfg.Queue
	if q == nil {
		q = queue.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.NewString()
	return &Player{
		id:             id,
		guildID:        cfg.GuildID,
		voiceChannelID: cfg.VoiceChannelID,
		textChannelID:  cfg.TextChannelID,
		transport:      cfg.Transport,
		resolver:       cfg.Resolver,
		messenger:      cfg.Messenger,
		queue:          q,
		opts:           opts,
		volume:         opts.Volume,
		onClose:        cfg.OnClose,
		log: logger.Named("player").With(
			zap.String("guild", cfg.GuildID),
			zap.String("session", id),
		),
		trackEnd: make(chan TransportEvent, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Player) ID() string          { return p.id }
func (p *Player) GuildID() string     { return p.guildID }
func (p *Player) Queue() *queue.Queue { return p.queue }
func (p *Player) Options() Options    { return p.opts }

func (p *Player) VoiceChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceChannelID
}

// Done is closed when Run returns.
func (p *Player) Done() <-chan struct{} { return p.done }

// Closed reports whether the session has been destroyed.
func (p *Player) Closed() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// Run drives the session until it is destroyed, times out idle, or ctx is
// cancelled. Destroy and idle timeout return nil; cancellation returns
// ctx.Err() and leaves the voice connection to the caller.
func (p *Player) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("player loop already started")
	}
	defer close(p.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	go p.pumpEvents(ctx)

	if err := p.transport.SetVolume(p.Volume()); err != nil {
		p.log.Warn("Failed to apply initial volume", zap.Error(err))
	}

	p.log.Info("Player loop started", zap.String("voice_channel", p.VoiceChannelID()))
	err := p.loop(ctx)

	p.clearCurrent()
	p.setState(StateTerminated)

	if p.Closed() {
		p.log.Info("Player loop finished")
		return nil
	}
	p.log.Info("Player loop cancelled", zap.Error(err))
	return err
}

func (p *Player) loop(ctx context.Context) error {
	for {
		p.setState(StateIdle)

		t, ok := p.queue.TryGet()
		if !ok {
			p.setState(StateWaitingForTrack)
			if err := p.waitForTrack(ctx); err != nil {
				return err
			}
			continue
		}

		if t.IsStub() {
			p.setState(StateResolving)
			resolved, err := p.resolve(ctx, t)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Warn("Dropping unresolved track", zap.String("query", t.SearchQuery()), zap.Error(err))
				p.notify(noticeEmbed(colorWarning, "Track not found",
					fmt.Sprintf("Could not find a playable match for %s, skipping it.", t.Display())))
				continue
			}
			t = resolved
		}

		if err := p.playTrack(ctx, t); err != nil {
			return err
		}
	}
}

// waitForTrack blocks until the queue is non-empty. When the idle timeout
// elapses first the session is torn down.
func (p *Player) waitForTrack(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, p.opts.IdleTimeout)
	err := p.queue.Wait(waitCtx)
	cancel()

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// A put may have raced the timeout; anything queued by an Enqueue that
	// returned nil is played rather than cleared.
	p.admit.Lock()
	defer p.admit.Unlock()
	if !p.queue.IsEmpty() {
		return nil
	}
	p.log.Info("Idle timeout reached, leaving voice channel", zap.Duration("timeout", p.opts.IdleTimeout))
	p.teardown(true)
	return context.Canceled
}

func (p *Player) resolve(ctx context.Context, stub track.Track) (track.Track, error) {
	if p.resolver == nil {
		return track.Track{}, ErrNoMatches
	}

	res, err := p.resolver.Search(ctx, stub.SearchQuery())
	if err != nil {
		return track.Track{}, fmt.Errorf("resolve %q: %w", stub.SearchQuery(), err)
	}
	for _, t := range res.Tracks {
		if t.IsStub() {
			continue
		}
		t.Requester = stub.Requester
		return t, nil
	}
	return track.Track{}, ErrNoMatches
}

func (p *Player) playTrack(ctx context.Context, t track.Track) error {
	p.drainTrackEnd()

	p.mu.Lock()
	p.current = &t
	p.paused = false
	p.mu.Unlock()
	p.setState(StatePlaying)

	if err := p.transport.Play(ctx, t); err != nil {
		p.clearCurrent()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Error("Failed to start playback", zap.String("track", t.Title), zap.Error(err))
		p.notify(noticeEmbed(colorError, "Playback failed",
			fmt.Sprintf("Could not play %s: %v", t.Display(), err)))
		return nil
	}
	p.log.Info("Now playing", zap.String("track", t.Title), zap.String("uri", t.URI))

	if p.opts.SettleDelay > 0 {
		timer := time.NewTimer(p.opts.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	p.postController()

	p.setState(StateAwaitingTrackEnd)
	if err := p.awaitTrackEnd(ctx, t); err != nil {
		return err
	}

	if p.queue.Loop() {
		p.queue.Put(t)
	}
	p.clearCurrent()
	p.finishController(t)
	return nil
}

func (p *Player) awaitTrackEnd(ctx context.Context, t track.Track) error {
	for {
		select {
		case ev := <-p.trackEnd:
			if ev.Track.ID != "" && t.ID != "" && ev.Track.ID != t.ID {
				p.log.Debug("Ignoring end event for another track", zap.String("track_id", ev.Track.ID))
				continue
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Player) pumpEvents(ctx context.Context) {
	events := p.transport.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.GuildID != "" && ev.GuildID != p.guildID {
				continue
			}
			p.handleEvent(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Player) handleEvent(ev TransportEvent) {
	switch ev.Type {
	case EventTrackStarted:
		p.log.Debug("Transport started track", zap.String("track", ev.Track.Title))
	case EventTrackEnded:
		p.signalTrackEnd(ev)
	case EventTrackStuck:
		p.log.Warn("Track stuck", zap.String("track", ev.Track.Title), zap.Error(ev.Err))
		p.notify(noticeEmbed(colorError, "Track stuck",
			fmt.Sprintf("%s got stuck and was skipped.%s", ev.Track.Display(), reason(ev.Err))))
		p.signalTrackEnd(ev)
	case EventTrackError:
		p.log.Warn("Track error", zap.String("track", ev.Track.Title), zap.Error(ev.Err))
		p.notify(noticeEmbed(colorError, "Track error",
			fmt.Sprintf("%s failed to play and was skipped.%s", ev.Track.Display(), reason(ev.Err))))
		p.signalTrackEnd(ev)
	case EventWebsocketClosed:
		p.log.Warn("Voice websocket closed", zap.Error(ev.Err))
		p.notify(noticeEmbed(colorWarning, "Voice connection closed",
			"The voice connection was closed by Discord."+reason(ev.Err)))
		if p.opts.TerminateOnVoiceClose {
			p.teardown(false)
		}
	}
}

func (p *Player) signalTrackEnd(ev TransportEvent) {
	select {
	case p.trackEnd <- ev:
	default:
		p.log.Debug("Track end signal dropped (already pending)")
	}
}

func (p *Player) drainTrackEnd() {
	for {
		select {
		case <-p.trackEnd:
		default:
			return
		}
	}
}

// teardown releases the session exactly once.
func (p *Player) teardown(notice bool) {
	p.destroyOnce.Do(func() {
		if notice {
			p.notify(noticeEmbed(colorWarning, "Leaving voice channel",
				"Leaving the voice channel due to inactivity."))
		}
		p.queue.Clear()
		close(p.stop)

		if err := p.transport.Disconnect(); err != nil {
			p.log.Warn("Voice disconnect failed", zap.Error(err))
		}
		p.setState(StateTerminated)

		if p.onClose != nil {
			p.onClose(p)
		}
	})
}

// Destroy stops playback, clears the queue and leaves the voice channel.
// Calling it more than once has no further effect.
func (p *Player) Destroy() {
	p.teardown(false)
}

// Enqueue appends tracks to the queue.
func (p *Player) Enqueue(tracks ...track.Track) error {
	return p.EnqueueAt(-1, tracks...)
}

// EnqueueAt inserts tracks at position in the queue; a negative position
// appends.
func (p *Player) EnqueueAt(position int, tracks ...track.Track) error {
	p.admit.Lock()
	defer p.admit.Unlock()
	if p.Closed() {
		return ErrSessionClosed
	}
	if position < 0 {
		p.queue.Put(tracks...)
	} else {
		p.queue.PutAt(position, tracks...)
	}
	return nil
}

// PlayNow puts tracks at the head of the queue and skips the current track.
func (p *Player) PlayNow(tracks ...track.Track) error {
	if err := p.EnqueueAt(0, tracks...); err != nil {
		return err
	}
	if _, err := p.Skip(); err != nil && !errors.Is(err, ErrNoTrackPlaying) {
		return err
	}
	return nil
}

func (p *Player) Pause() error {
	return p.setPaused(true)
}

func (p *Player) Resume() error {
	return p.setPaused(false)
}

func (p *Player) setPaused(paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNoTrackPlaying
	}
	if p.paused == paused {
		return nil
	}
	if err := p.transport.SetPaused(paused); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	p.paused = paused
	return nil
}

// Skip ends the current track. The loop moves on once the transport
// reports the end.
func (p *Player) Skip() (track.Track, error) {
	cur, ok := p.Current()
	if !ok {
		return track.Track{}, ErrNoTrackPlaying
	}
	if err := p.transport.Stop(); err != nil {
		return track.Track{}, fmt.Errorf("skip: %w", err)
	}
	return cur, nil
}

// SkipN skips the current track and drops the next n-1 queued ones.
func (p *Player) SkipN(n int) (track.Track, error) {
	if _, ok := p.Current(); !ok {
		return track.Track{}, ErrNoTrackPlaying
	}
	for range n - 1 {
		if _, err := p.queue.Remove(0); err != nil {
			break
		}
	}
	return p.Skip()
}

// SkipVote is the outcome of one VoteSkip call.
type SkipVote struct {
	Track  track.Track
	Votes  int
	Needed int
	// Counted is false when the call withdrew an earlier vote.
	Counted bool
	Skipped bool
}

// VoteSkip casts userID's vote against the current track, or withdraws it
// if they already voted. Votes only count for the track they were cast on.
// The track is skipped once a counted vote brings the total to needed.
func (p *Player) VoteSkip(userID string, needed int) (SkipVote, error) {
	needed = max(needed, 1)

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return SkipVote{}, ErrNoTrackPlaying
	}
	if p.votesFor != p.current {
		p.votesFor = p.current
		p.votes = map[string]struct{}{}
	}
	v := SkipVote{Track: *p.current, Needed: needed}
	if _, ok := p.votes[userID]; ok {
		delete(p.votes, userID)
	} else {
		p.votes[userID] = struct{}{}
		v.Counted = true
	}
	v.Votes = len(p.votes)
	p.mu.Unlock()

	if !v.Counted || v.Votes < needed {
		return v, nil
	}
	if _, err := p.Skip(); err != nil {
		return v, err
	}
	v.Skipped = true
	p.log.Info("Track skipped by vote", zap.String("track", v.Track.Title), zap.Int("votes", v.Votes))
	return v, nil
}

func (p *Player) Seek(position time.Duration) error {
	cur, ok := p.Current()
	if !ok {
		return ErrNoTrackPlaying
	}
	if cur.IsStream || !cur.IsSeekable {
		return ErrNotSeekable
	}
	if position < 0 || position > cur.Length {
		return ErrInvalidPosition
	}
	if err := p.transport.Seek(position); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

func (p *Player) SetVolume(volume int) error {
	if volume < 0 || volume > MaxVolume {
		return ErrInvalidVolume
	}
	if err := p.transport.SetVolume(volume); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) SetLoop(enabled bool) {
	p.queue.SetLoop(enabled)
}

func (p *Player) Loop() bool {
	return p.queue.Loop()
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Current returns the track handed to the transport, if any.
func (p *Player) Current() (track.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return track.Track{}, false
	}
	return *p.current, true
}

func (p *Player) Position() time.Duration {
	if _, ok := p.Current(); !ok {
		return 0
	}
	return p.transport.Position()
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) IsConnected() bool {
	return !p.Closed() && p.transport.IsConnected()
}

// Reconnect rejoins voice after Discord dropped the connection, possibly in
// a different channel. A connected session is left as is.
func (p *Player) Reconnect(ctx context.Context, voiceChannelID string) error {
	if p.Closed() {
		return ErrSessionClosed
	}
	if p.transport.IsConnected() {
		return nil
	}
	if err := p.transport.Connect(ctx, voiceChannelID); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	p.mu.Lock()
	p.voiceChannelID = voiceChannelID
	p.mu.Unlock()
	p.log.Info("Reconnected to voice", zap.String("voice_channel", voiceChannelID))
	return nil
}

func (p *Player) TextChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textChannelID
}

// SetTextChannel rebinds where status messages are posted.
func (p *Player) SetTextChannel(channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.textChannelID = channelID
}

// Status is a point-in-time view used to render the controller.
type Status struct {
	State     State
	Track     track.Track
	Playing   bool
	Position  time.Duration
	Paused    bool
	Loop      bool
	Volume    int
	QueueLen  int
	QueueTime time.Duration
	Upcoming  []track.Track
}

func (p *Player) Status() Status {
	p.mu.Lock()
	s := Status{
		State:  p.state,
		Paused: p.paused,
		Volume: p.volume,
	}
	if p.current != nil {
		s.Track = *p.current
		s.Playing = true
	}
	p.mu.Unlock()

	if s.Playing {
		s.Position = p.transport.Position()
	}
	s.Loop = p.queue.Loop()
	s.Upcoming = p.queue.Tracks()
	s.QueueLen = len(s.Upcoming)
	s.QueueTime = p.queue.Duration()
	return s
}

func (p *Player) postController() {
	embed := Controller(p.Status(), p.opts.EmbedSize)
	channelID, msgID := p.send(embed)
	if msgID == "" {
		return
	}
	p.mu.Lock()
	p.controllerChannel = channelID
	p.controllerID = msgID
	p.mu.Unlock()
}

// finishController edits the last controller message in place. Without a
// message handle there is nothing to edit.
func (p *Player) finishController(t track.Track) {
	p.mu.Lock()
	channelID, msgID := p.controllerChannel, p.controllerID
	p.controllerChannel, p.controllerID = "", ""
	p.mu.Unlock()

	if msgID == "" || p.messenger == nil {
		return
	}
	if err := p.messenger.Edit(channelID, msgID, Finished(t)); err != nil {
		p.log.Debug("Failed to edit controller", zap.Error(err))
	}
}

func (p *Player) notify(embed *discordgo.MessageEmbed) {
	p.send(embed)
}

// send posts to the bound text channel. Failures are logged and swallowed.
func (p *Player) send(embed *discordgo.MessageEmbed) (channelID, msgID string) {
	channelID = p.TextChannelID()
	if p.messenger == nil || channelID == "" {
		return channelID, ""
	}
	msgID, err := p.messenger.Send(channelID, embed)
	if err != nil {
		p.log.Debug("Failed to send message", zap.String("channel", channelID), zap.Error(err))
		return channelID, ""
	}
	return channelID, msgID
}

func (p *Player) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateTerminated {
		return
	}
	if p.state != s {
		p.log.Debug("State change", zap.Stringer("from", p.state), zap.Stringer("to", s))
	}
	p.state = s
}

func (p *Player) clearCurrent() {
	p.mu.Lock()
	p.current = nil
	p.paused = false
	p.mu.Unlock()
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	return "\nReason: `" + err.Error() + "`"
}
