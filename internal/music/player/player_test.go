package player

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/keshon/jukebox/internal/music/track"

	"github.com/bwmarrin/discordgo"
)

type fakeTransport struct {
	mu          sync.Mutex
	guildID     string
	events      chan TransportEvent
	played      []track.Track
	current     track.Track
	playErr     error
	connects    int
	disconnects int
	stops       int
	paused      bool
	volume      int
	seekTo      time.Duration
	dropped     bool
	channel     string
}

func newFakeTransport(guildID string) *fakeTransport {
	return &fakeTransport{guildID: guildID, events: make(chan TransportEvent, 16)}
}

func (f *fakeTransport) Connect(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.dropped = false
	f.channel = channelID
	return nil
}

// drop simulates Discord closing the voice connection.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.dropped = true
	f.mu.Unlock()
	f.emit(EventWebsocketClosed, track.Track{}, errors.New("4014"))
}

func (f *fakeTransport) Play(ctx context.Context, t track.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.played = append(f.played, t)
	f.current = t
	return nil
}

func (f *fakeTransport) Stop() error {
	f.mu.Lock()
	f.stops++
	cur := f.current
	f.mu.Unlock()
	f.emit(EventTrackEnded, cur, nil)
	return nil
}

func (f *fakeTransport) SetPaused(paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
	return nil
}

func (f *fakeTransport) Seek(position time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekTo = position
	return nil
}

func (f *fakeTransport) SetVolume(volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects > f.disconnects && !f.dropped
}

func (f *fakeTransport) Position() time.Duration       { return 0 }
func (f *fakeTransport) Events() <-chan TransportEvent { return f.events }

func (f *fakeTransport) emit(typ EventType, t track.Track, err error) {
	f.events <- TransportEvent{Type: typ, GuildID: f.guildID, Track: t, Err: err}
}

func (f *fakeTransport) playedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.played))
	for i, t := range f.played {
		out[i] = t.ID
	}
	return out
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

type sentMessage struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

type fakeMessenger struct {
	mu    sync.Mutex
	sent  []sentMessage
	edits []sentMessage
	fail  bool
	// noID makes Send succeed without returning a message ID.
	noID bool

	// When set, Send reports on entered and blocks until release closes.
	entered chan struct{}
	release chan struct{}
}

func (m *fakeMessenger) Send(channelID string, embed *discordgo.MessageEmbed) (string, error) {
	if m.release != nil {
		m.entered <- struct{}{}
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("missing permissions")
	}
	m.sent = append(m.sent, sentMessage{channelID, embed})
	if m.noID {
		return "", nil
	}
	return "msg-" + strconv.Itoa(len(m.sent)), nil
}

func (m *fakeMessenger) Edit(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("missing permissions")
	}
	m.edits = append(m.edits, sentMessage{channelID, embed})
	return nil
}

func (m *fakeMessenger) countTitle(title string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.embed.Title == title {
			n++
		}
	}
	return n
}

func (m *fakeMessenger) editCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edits)
}

type fakeResolver struct {
	results map[string]track.SearchResult
}

func (r *fakeResolver) Search(ctx context.Context, query string) (track.SearchResult, error) {
	res, ok := r.results[query]
	if !ok {
		return track.SearchResult{Kind: track.ResultSearch}, nil
	}
	return res, nil
}

func native(id string) track.Track {
	return track.Track{ID: id, Title: "song " + id, URI: "https://example.com/" + id, Length: 3 * time.Minute, IsSeekable: true}
}

func stub(title, author string) track.Track {
	return track.Track{Title: title, Author: author, Source: track.SourceSpotify, Origin: track.OriginSearchStub}
}

func testOptions() Options {
	return Options{IdleTimeout: time.Hour, SettleDelay: time.Millisecond, Volume: 100}
}

type harness struct {
	player    *Player
	transport *fakeTransport
	messenger *fakeMessenger
	closes    int
	runErr    chan error
	cancel    context.CancelFunc
}

func newHarness(t *testing.T, opts Options, resolver TrackResolver) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport("g1"),
		messenger: &fakeMessenger{},
		runErr:    make(chan error, 1),
	}
	h.player = New(Config{
		GuildID:        "g1",
		VoiceChannelID: "v1",
		TextChannelID:  "t1",
		Transport:      h.transport,
		Resolver:       resolver,
		Messenger:      h.messenger,
		Options:        opts,
		OnClose:        func(*Player) { h.closes++ },
	})
	return h
}

func (h *harness) start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	go func() { h.runErr <- h.player.Run(ctx) }()
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.runErr:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("player loop did not return")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func sameIDs(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestIdleTimeoutTearsDown(t *testing.T) {
	opts := testOptions()
	opts.IdleTimeout = 30 * time.Millisecond
	h := newHarness(t, opts, nil)

	h.start(context.Background())
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}

	if got := h.transport.disconnectCount(); got != 1 {
		t.Fatalf("disconnects = %d, want 1", got)
	}
	if !h.player.Queue().IsEmpty() {
		t.Fatal("queue not empty after teardown")
	}
	if h.player.State() != StateTerminated {
		t.Fatalf("state = %v", h.player.State())
	}
	if n := h.messenger.countTitle("Leaving voice channel"); n != 1 {
		t.Fatalf("leave notices = %d, want 1", n)
	}

	h.player.Destroy()
	if got := h.transport.disconnectCount(); got != 1 {
		t.Fatalf("disconnects after second destroy = %d", got)
	}
	if h.closes != 1 {
		t.Fatalf("OnClose ran %d times", h.closes)
	}
	if err := h.player.Enqueue(native("late")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Enqueue after teardown = %v", err)
	}
}

func TestEnqueueDuringIdleTeardownIsRejected(t *testing.T) {
	opts := testOptions()
	opts.IdleTimeout = 10 * time.Millisecond
	h := newHarness(t, opts, nil)
	h.messenger.entered = make(chan struct{}, 1)
	h.messenger.release = make(chan struct{})

	h.start(context.Background())
	select {
	case <-h.messenger.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("leave notice was not sent")
	}

	result := make(chan error, 1)
	go func() { result <- h.player.Enqueue(native("late")) }()
	select {
	case err := <-result:
		t.Fatalf("Enqueue returned %v while the session was being torn down", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(h.messenger.release)
	if err := <-result; !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Enqueue = %v, want ErrSessionClosed", err)
	}
	if err := h.wait(t); err != nil {
		t.Fatal(err)
	}
	if !h.player.Queue().IsEmpty() {
		t.Fatal("late track left in a closed session")
	}
}

func TestIdleTimeoutSurvivesMessagingFailure(t *testing.T) {
	opts := testOptions()
	opts.IdleTimeout = 10 * time.Millisecond
	h := newHarness(t, opts, nil)
	h.messenger.fail = true

	h.start(context.Background())
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got := h.transport.disconnectCount(); got != 1 {
		t.Fatalf("disconnects = %d, want 1", got)
	}
}

func TestUnresolvedStubIsReportedAndSkipped(t *testing.T) {
	h := newHarness(t, testOptions(), &fakeResolver{})
	h.player.Queue().Put(stub("Missing", "Nobody"), native("b"))

	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "b to play", func() bool { return sameIDs(h.transport.playedIDs(), "b") })
	if n := h.messenger.countTitle("Track not found"); n != 1 {
		t.Fatalf("not-found notices = %d, want 1", n)
	}
}

func TestUnresolvedStubFallsBackToWaiting(t *testing.T) {
	h := newHarness(t, testOptions(), &fakeResolver{})
	h.player.Queue().Put(stub("Missing", "Nobody"))

	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "waiting state", func() bool { return h.player.State() == StateWaitingForTrack })
	if n := h.messenger.countTitle("Track not found"); n != 1 {
		t.Fatalf("not-found notices = %d, want 1", n)
	}
	if len(h.transport.playedIDs()) != 0 {
		t.Fatal("stub reached the transport")
	}
}

func TestStubResolvedBeforePlay(t *testing.T) {
	resolved := native("yt1")
	resolver := &fakeResolver{results: map[string]track.SearchResult{
		"Artist - Title": {Kind: track.ResultSearch, Tracks: []track.Track{resolved}},
	}}
	h := newHarness(t, testOptions(), resolver)
	s := stub("Title", "Artist").WithRequester(track.Requester{ID: "u1"})
	h.player.Queue().Put(s)

	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "resolved track to play", func() bool { return sameIDs(h.transport.playedIDs(), "yt1") })
	cur, ok := h.player.Current()
	if !ok || cur.Requester.ID != "u1" {
		t.Fatalf("current = %+v, %v; requester not carried over", cur, ok)
	}
}

func TestLoopModeRequeuesFinishedTrack(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.player.SetLoop(true)
	h.player.Queue().Put(native("a"), native("b"))

	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })
	h.transport.emit(EventTrackEnded, native("a"), nil)
	waitFor(t, "b to play", func() bool { return sameIDs(h.transport.playedIDs(), "a", "b") })

	pending := h.player.Queue().Tracks()
	if len(pending) != 1 || pending[0].ID != "a" {
		t.Fatalf("pending = %v, want [a]", pending)
	}
}

func TestTrackEndWithoutLoopEmptiesQueue(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.player.Queue().Put(native("a"))

	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })
	waitFor(t, "controller", func() bool { return h.messenger.countTitle("Now playing") == 1 })

	h.transport.emit(EventTrackEnded, native("a"), nil)
	waitFor(t, "waiting state", func() bool { return h.player.State() == StateWaitingForTrack })

	if _, ok := h.player.Current(); ok {
		t.Fatal("current track not cleared")
	}
	if !h.player.Queue().IsEmpty() {
		t.Fatal("queue not empty")
	}
	waitFor(t, "finished edit", func() bool { return h.messenger.editCount() == 1 })
	if last, _ := h.player.Queue().LastPlayed(); last.ID != "a" {
		t.Fatalf("history head = %q", last.ID)
	}
}

func TestFailedTrackIsNotifiedAndSkipped(t *testing.T) {
	tests := []struct {
		event EventType
		title string
	}{
		{EventTrackStuck, "Track stuck"},
		{EventTrackError, "Track error"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			h := newHarness(t, testOptions(), nil)
			h.player.Queue().Put(native("a"), native("b"))

			h.start(context.Background())
			defer h.cancel()

			waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })
			h.transport.emit(tt.event, native("a"), errors.New("decoder failed"))
			waitFor(t, "b to play", func() bool { return sameIDs(h.transport.playedIDs(), "a", "b") })

			if n := h.messenger.countTitle(tt.title); n != 1 {
				t.Fatalf("%q notices = %d", tt.title, n)
			}
			if last, _ := h.player.Queue().LastPlayed(); last.ID != "b" {
				t.Fatalf("history head = %q", last.ID)
			}
		})
	}
}

func TestTrackEndWithoutControllerSkipsEdit(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.messenger.noID = true
	h.player.Queue().Put(native("a"), native("b"))

	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })
	waitFor(t, "controller", func() bool { return h.messenger.countTitle("Now playing") == 1 })
	h.transport.emit(EventTrackEnded, native("a"), nil)
	waitFor(t, "b to play", func() bool { return sameIDs(h.transport.playedIDs(), "a", "b") })

	if n := h.messenger.editCount(); n != 0 {
		t.Fatalf("edits = %d, want none without a message handle", n)
	}
}

func TestPlayFailureMovesOn(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.transport.playErr = errors.New("no stream")
	h.player.Queue().Put(native("a"))

	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "waiting state", func() bool { return h.player.State() == StateWaitingForTrack })
	if n := h.messenger.countTitle("Playback failed"); n != 1 {
		t.Fatalf("failure notices = %d", n)
	}
}

func TestEventsForOtherGuildsAreIgnored(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.player.Queue().Put(native("a"), native("b"))

	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })
	h.transport.events <- TransportEvent{Type: EventTrackEnded, GuildID: "other", Track: native("a")}
	time.Sleep(20 * time.Millisecond)
	if got := h.transport.playedIDs(); !sameIDs(got, "a") {
		t.Fatalf("played = %v after foreign event", got)
	}
}

func TestCancelWhileWaitingLeavesNoWaiter(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.start(context.Background())

	waitFor(t, "queue waiter", func() bool { return h.player.Queue().Waiters() == 1 })
	h.cancel()

	if err := h.wait(t); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if n := h.player.Queue().Waiters(); n != 0 {
		t.Fatalf("waiters = %d after cancel", n)
	}
	if got := h.transport.disconnectCount(); got != 0 {
		t.Fatalf("disconnects = %d, external cancel must not disconnect", got)
	}
}

func TestDestroyWhileWaitingDisconnectsOnce(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.start(context.Background())
	defer h.cancel()

	waitFor(t, "queue waiter", func() bool { return h.player.Queue().Waiters() == 1 })
	h.player.Destroy()
	h.player.Destroy()

	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if n := h.player.Queue().Waiters(); n != 0 {
		t.Fatalf("waiters = %d after destroy", n)
	}
	if got := h.transport.disconnectCount(); got != 1 {
		t.Fatalf("disconnects = %d, want 1", got)
	}
	if n := h.messenger.countTitle("Leaving voice channel"); n != 0 {
		t.Fatal("explicit destroy posted the inactivity notice")
	}
}

func TestWebsocketClosed(t *testing.T) {
	tests := []struct {
		name      string
		terminate bool
	}{
		{"notify only", false},
		{"terminate", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.TerminateOnVoiceClose = tt.terminate
			h := newHarness(t, opts, nil)
			h.start(context.Background())
			defer h.cancel()

			waitFor(t, "queue waiter", func() bool { return h.player.Queue().Waiters() == 1 })
			h.transport.emit(EventWebsocketClosed, track.Track{}, errors.New("4014"))
			waitFor(t, "notice", func() bool { return h.messenger.countTitle("Voice connection closed") == 1 })

			if !tt.terminate {
				if h.player.Closed() {
					t.Fatal("session closed without TerminateOnVoiceClose")
				}
				return
			}
			if err := h.wait(t); err != nil {
				t.Fatalf("Run = %v", err)
			}
			if got := h.transport.disconnectCount(); got != 1 {
				t.Fatalf("disconnects = %d", got)
			}
		})
	}
}

func TestPlayerControls(t *testing.T) {
	h := newHarness(t, testOptions(), nil)

	if _, err := h.player.Skip(); !errors.Is(err, ErrNoTrackPlaying) {
		t.Fatalf("Skip idle = %v", err)
	}
	if err := h.player.Pause(); !errors.Is(err, ErrNoTrackPlaying) {
		t.Fatalf("Pause idle = %v", err)
	}
	if err := h.player.SetVolume(MaxVolume + 1); !errors.Is(err, ErrInvalidVolume) {
		t.Fatalf("SetVolume = %v", err)
	}

	live := native("live")
	live.IsStream = true
	h.player.Queue().Put(native("a"), live)

	h.start(context.Background())
	defer h.cancel()
	waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })

	if err := h.player.Seek(time.Minute); err != nil {
		t.Fatalf("Seek = %v", err)
	}
	if err := h.player.Seek(time.Hour); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("Seek past end = %v", err)
	}
	if err := h.player.Pause(); err != nil || !h.player.Paused() {
		t.Fatalf("Pause = %v, paused=%v", err, h.player.Paused())
	}
	if err := h.player.Resume(); err != nil || h.player.Paused() {
		t.Fatalf("Resume = %v, paused=%v", err, h.player.Paused())
	}
	if err := h.player.SetVolume(50); err != nil || h.player.Volume() != 50 {
		t.Fatalf("SetVolume = %v, volume=%d", err, h.player.Volume())
	}

	skipped, err := h.player.Skip()
	if err != nil || skipped.ID != "a" {
		t.Fatalf("Skip = %v, %v", skipped.ID, err)
	}
	waitFor(t, "live to play", func() bool { return sameIDs(h.transport.playedIDs(), "a", "live") })

	if err := h.player.Seek(time.Second); !errors.Is(err, ErrNotSeekable) {
		t.Fatalf("Seek on stream = %v", err)
	}
}

func TestPlayNowJumpsQueue(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.player.Queue().Put(native("a"), native("b"))

	h.start(context.Background())
	defer h.cancel()
	waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })

	if err := h.player.PlayNow(native("now")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "now to play", func() bool { return sameIDs(h.transport.playedIDs(), "a", "now") })
}

func TestControllerUpNext(t *testing.T) {
	var upcoming []track.Track
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		upcoming = append(upcoming, native(id))
	}
	s := Status{Track: native("cur"), Playing: true, QueueLen: len(upcoming), Upcoming: upcoming, Volume: 100}

	embed := Controller(s, EmbedLarge)
	var next string
	for _, f := range embed.Fields {
		if f.Name == "Up next" {
			next = f.Value
		}
	}
	if !strings.Contains(next, "**5.**") || !strings.Contains(next, "**7.**") || strings.Contains(next, "**6.**") {
		t.Fatalf("Up next = %q", next)
	}
	if !strings.Contains(next, "...") {
		t.Fatalf("Up next missing gap marker: %q", next)
	}

	small := Controller(s, EmbedSmall)
	if len(small.Fields) != 0 {
		t.Fatalf("small embed has %d fields", len(small.Fields))
	}

	live := s
	live.Track.IsStream = true
	if got := timeField(live); got != "live" {
		t.Fatalf("timeField = %q", got)
	}
}

func TestControllerFieldsFitDiscordLimits(t *testing.T) {
	long := strings.Repeat("Extended Mix ", 8)[:100]
	var upcoming []track.Track
	for i := range 8 {
		upcoming = append(upcoming, track.Track{
			ID:        strconv.Itoa(i),
			Title:     long,
			URI:       "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			Length:    3 * time.Minute,
			Requester: track.Requester{ID: "123456789012345678"},
		})
	}
	s := Status{Track: upcoming[0], Playing: true, QueueLen: len(upcoming), Upcoming: upcoming, Volume: 100}

	for _, f := range Controller(s, EmbedLarge).Fields {
		if n := utf8.RuneCountInString(f.Value); n > track.FieldLimit {
			t.Errorf("field %q is %d runes", f.Name, n)
		}
		if f.Name == "Up next" && strings.Contains(f.Value, long) {
			t.Error("up next titles were not shortened")
		}
	}
}

func TestParseEmbedSize(t *testing.T) {
	tests := map[string]EmbedSize{
		"small":  EmbedSmall,
		"medium": EmbedMedium,
		"large":  EmbedLarge,
		"huge":   EmbedLarge,
		"":       EmbedLarge,
	}
	for in, want := range tests {
		if got := ParseEmbedSize(in); got != want {
			t.Errorf("ParseEmbedSize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVoteSkip(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	if _, err := h.player.VoteSkip("u1", 2); !errors.Is(err, ErrNoTrackPlaying) {
		t.Fatalf("VoteSkip idle = %v", err)
	}

	h.player.Queue().Put(native("a"), native("b"), native("c"))
	h.start(context.Background())
	defer h.cancel()
	waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })

	v, err := h.player.VoteSkip("u1", 2)
	if err != nil || !v.Counted || v.Votes != 1 || v.Skipped {
		t.Fatalf("first vote = %+v, %v", v, err)
	}
	v, _ = h.player.VoteSkip("u1", 2)
	if v.Counted || v.Votes != 0 {
		t.Fatalf("repeat vote should withdraw: %+v", v)
	}

	h.player.VoteSkip("u1", 2)
	v, err = h.player.VoteSkip("u2", 2)
	if err != nil || !v.Skipped || v.Track.ID != "a" {
		t.Fatalf("second voter = %+v, %v", v, err)
	}
	waitFor(t, "b to play", func() bool { return sameIDs(h.transport.playedIDs(), "a", "b") })

	v, _ = h.player.VoteSkip("u2", 2)
	if v.Votes != 1 || v.Skipped {
		t.Fatalf("votes carried over to the next track: %+v", v)
	}
}

func TestSkipNDropsQueuedTracks(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.player.Queue().Put(native("a"), native("b"), native("c"), native("d"))
	h.start(context.Background())
	defer h.cancel()
	waitFor(t, "a to play", func() bool { return sameIDs(h.transport.playedIDs(), "a") })

	skipped, err := h.player.SkipN(3)
	if err != nil || skipped.ID != "a" {
		t.Fatalf("SkipN = %v, %v", skipped.ID, err)
	}
	waitFor(t, "d to play", func() bool { return sameIDs(h.transport.playedIDs(), "a", "d") })
}
