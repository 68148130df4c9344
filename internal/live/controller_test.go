package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var testSetList = []ControllerSetListEntry{
	{SongID: "song1", Transposition: 0},
	{SongID: "song2", Transposition: 2},
	{SongID: "song3", Transposition: -1},
}

// sendRecorder captures outbound envelopes for assertions.
type sendRecorder struct {
	mu   sync.Mutex
	sent []Envelope
	err  error
}

func (r *sendRecorder) send(env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, env)
	return r.err
}

func (r *sendRecorder) all() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.sent...)
}

func (r *sendRecorder) lastOfType(eventType EventType) (Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Type == eventType {
			return r.sent[i], true
		}
	}
	return Envelope{}, false
}

func newFollowerController(t *testing.T, rec *sendRecorder) *Controller {
	t.Helper()
	c := NewController(ControllerConfig{
		ServiceID:        "svc1",
		ParticipantID:    "p-me",
		IsLeader:         false,
		SetList:          testSetList,
		Send:             rec.send,
		FallbackInterval: 40 * time.Millisecond,
	})
	t.Cleanup(c.Close)
	return c
}

func deliver(c *Controller, eventType EventType, payload any) {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		panic(err)
	}
	c.HandleIncoming(env)
}

func TestFollowerAppliesInlineNavigation(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song2", SongIndex: 1, Transposition: intptr(4)})

	state := c.Snapshot()
	if state.SongIndex != 1 || state.SongID != "song2" {
		t.Fatalf("position = %s/%d, want song2/1", state.SongID, state.SongIndex)
	}
	if state.Transposition != 4 {
		t.Fatalf("transposition = %d, want 4 (inline, not set-list default)", state.Transposition)
	}
}

func TestFollowerDiscardsOutOfRangeIndex(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song9", SongIndex: 9})
	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song1", SongIndex: -1})

	if state := c.Snapshot(); state.SongIndex != -1 {
		t.Fatalf("out-of-range navigation applied: %+v", state)
	}
}

func TestFollowerDiscardsSongIDMismatch(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	// Index 1 holds song2 locally; a different song ID means the set
	// lists have diverged, so the event cannot be trusted.
	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "other-song", SongIndex: 1})

	if state := c.Snapshot(); state.SongIndex != -1 {
		t.Fatalf("mismatched navigation applied: %+v", state)
	}
}

func TestFreeModeIgnoresLeaderEvents(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	c.ToggleFollow() // following -> free
	c.NavigateTo(2)
	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song1", SongIndex: 0, Transposition: intptr(7)})
	deliver(c, EventLeaderTransposed, TransposePayload{Transposition: 7, SongID: "song3"})
	deliver(c, EventSyncState, SyncStatePayload{CurrentSongIndex: intptr(0), SongID: "song1"})

	state := c.Snapshot()
	if state.Mode != ModeFree {
		t.Fatalf("mode = %s, want free", state.Mode)
	}
	if state.SongIndex != 2 || state.Transposition != -1 {
		t.Fatalf("free-mode state overwritten: %+v", state)
	}
}

func TestReFollowRequestsSync(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	c.ToggleFollow()
	c.ToggleFollow()
	c.Snapshot() // barrier: both toggles processed

	if _, ok := rec.lastOfType(EventRequestSync); !ok {
		t.Fatalf("no request-sync after re-follow; sent %v", rec.all())
	}
	if state := c.Snapshot(); state.Mode != ModeFollowing {
		t.Fatalf("mode = %s, want following", state.Mode)
	}
}

func TestStaleTransposeForOtherSongDiscarded(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song2", SongIndex: 1, Transposition: intptr(0)})
	deliver(c, EventLeaderTransposed, TransposePayload{Transposition: 5, SongID: "song1"})

	if state := c.Snapshot(); state.Transposition != 0 {
		t.Fatalf("stale transpose applied: %d", state.Transposition)
	}

	deliver(c, EventLeaderTransposed, TransposePayload{Transposition: 5, SongID: "song2"})
	if state := c.Snapshot(); state.Transposition != 5 {
		t.Fatalf("matching transpose not applied: %d", state.Transposition)
	}
}

func TestLeaderDisconnectDropsFollowerToFreeOnce(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	deliver(c, EventLeaderDisconnected, NoticePayload{})
	if state := c.Snapshot(); state.Mode != ModeFree || state.LeaderPresent {
		t.Fatalf("after disconnect: %+v", state)
	}

	// Reconnect re-enables following but never forces it.
	deliver(c, EventLeaderReconnected, NoticePayload{})
	state := c.Snapshot()
	if state.Mode != ModeFree {
		t.Fatalf("reconnect auto-resumed following: %s", state.Mode)
	}
	if !state.LeaderPresent {
		t.Fatal("leader not marked present after reconnect")
	}

	// A second disconnect while already free changes nothing.
	deliver(c, EventLeaderDisconnected, NoticePayload{})
	if state := c.Snapshot(); state.Mode != ModeFree {
		t.Fatalf("mode = %s", state.Mode)
	}
}

func TestTranspositionMemoOnLocalNavigation(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)
	c.ToggleFollow() // free: local navigation only

	c.NavigateTo(1)
	if state := c.Snapshot(); state.Transposition != 2 {
		t.Fatalf("first visit transposition = %d, want set-list default 2", state.Transposition)
	}

	c.SetTransposition(6)
	c.NavigateTo(2)
	if state := c.Snapshot(); state.Transposition != -1 {
		t.Fatalf("song3 transposition = %d, want its default -1", state.Transposition)
	}

	c.NavigateTo(1)
	if state := c.Snapshot(); state.Transposition != 6 {
		t.Fatalf("revisit transposition = %d, want remembered 6 over default 2", state.Transposition)
	}
}

func TestWatchdogFallsBackToPersistedTransposition(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	// No inline transposition and no trailing transpose event.
	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song2", SongIndex: 1})

	deadline := time.Now().Add(time.Second)
	for {
		state := c.Snapshot()
		if state.Transposition == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watchdog never applied persisted value; state %+v", state)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTrailingTransposeCancelsWatchdog(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song2", SongIndex: 1})
	deliver(c, EventLeaderTransposed, TransposePayload{Transposition: 9, SongID: "song2"})

	time.Sleep(100 * time.Millisecond) // well past the fallback interval
	if state := c.Snapshot(); state.Transposition != 9 {
		t.Fatalf("transposition = %d, want 9 kept after watchdog window", state.Transposition)
	}
}

func TestLocalNavigationCancelsWatchdog(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song2", SongIndex: 1})
	c.ToggleFollow()
	c.SetTransposition(8)
	c.NavigateTo(0)
	c.NavigateTo(1)

	time.Sleep(100 * time.Millisecond)
	if state := c.Snapshot(); state.Transposition != 8 {
		t.Fatalf("watchdog overwrote locally chosen transposition: %d", state.Transposition)
	}
}

func TestFontSizeIsLocalOnly(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	c.SetFontSize(22)
	deliver(c, EventSyncState, SyncStatePayload{
		CurrentSongIndex: intptr(0),
		SongID:           "song1",
		Transposition:    intptr(1),
		FontSize:         intptr(99),
	})

	state := c.Snapshot()
	if state.FontSize != 22 {
		t.Fatalf("font size = %d, want local 22 untouched by sync", state.FontSize)
	}
	if state.SongIndex != 0 || state.Transposition != 1 {
		t.Fatalf("sync state not applied: %+v", state)
	}
	for _, env := range rec.all() {
		if env.Type == EventLeaderNavigate || env.Type == EventLeaderTranspose {
			t.Fatalf("follower replicated %s", env.Type)
		}
	}
}

func TestLeaderNavigatePersistsAndReplicates(t *testing.T) {
	rec := &sendRecorder{}
	type persisted struct {
		serviceID, songID string
		transposition     int
	}
	persistCh := make(chan persisted, 4)
	c := NewController(ControllerConfig{
		ServiceID:     "svc1",
		ParticipantID: "p-leader",
		IsLeader:      true,
		SetList:       testSetList,
		Send:          rec.send,
		Persist: func(_ context.Context, serviceID, songID string, transposition int) error {
			persistCh <- persisted{serviceID, songID, transposition}
			return nil
		},
	})
	defer c.Close()

	c.NavigateTo(1)
	c.Snapshot()

	env, ok := rec.lastOfType(EventLeaderNavigate)
	if !ok {
		t.Fatal("leader navigation not sent")
	}
	p, err := decodePayload[NavigatePayload](env.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if p.SongID != "song2" || p.SongIndex != 1 {
		t.Fatalf("sent %s/%d", p.SongID, p.SongIndex)
	}
	if p.Transposition == nil || *p.Transposition != 2 {
		t.Fatalf("inline transposition = %v, want 2", p.Transposition)
	}

	select {
	case got := <-persistCh:
		want := persisted{"svc1", "song2", 2}
		if got != want {
			t.Fatalf("persisted %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("nothing persisted")
	}
}

func TestLeaderKeepsWorkingWhenPersistFails(t *testing.T) {
	rec := &sendRecorder{}
	c := NewController(ControllerConfig{
		ServiceID:     "svc1",
		ParticipantID: "p-leader",
		IsLeader:      true,
		SetList:       testSetList,
		Send:          rec.send,
		Persist: func(context.Context, string, string, int) error {
			return errors.New("db down")
		},
	})
	defer c.Close()

	c.NavigateTo(0)
	c.SetTransposition(3)
	state := c.Snapshot()

	if state.SongIndex != 0 || state.Transposition != 3 {
		t.Fatalf("local state blocked by persist failure: %+v", state)
	}
	if _, ok := rec.lastOfType(EventLeaderTranspose); !ok {
		t.Fatal("transpose not replicated despite persist failure")
	}
}

func TestBecameLeaderPromotes(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	deliver(c, EventBecameLeader, BecameLeaderPayload{ServiceID: "svc1"})
	if state := c.Snapshot(); state.Mode != ModeLeader {
		t.Fatalf("mode = %s, want leader", state.Mode)
	}

	// As leader, local navigation now replicates.
	c.NavigateTo(0)
	c.Snapshot()
	if _, ok := rec.lastOfType(EventLeaderNavigate); !ok {
		t.Fatal("promoted leader did not replicate navigation")
	}
}

func TestLeaderChangedDemotesDisplacedLeader(t *testing.T) {
	rec := &sendRecorder{}
	c := NewController(ControllerConfig{
		ServiceID:     "svc1",
		ParticipantID: "p-me",
		IsLeader:      true,
		SetList:       testSetList,
		Send:          rec.send,
	})
	defer c.Close()

	deliver(c, EventLeaderChanged, LeaderChangedPayload{NewLeaderID: "p-other"})
	if state := c.Snapshot(); state.Mode != ModeFree {
		t.Fatalf("displaced leader mode = %s, want free", state.Mode)
	}

	// Naming us keeps leadership.
	c2 := NewController(ControllerConfig{
		ServiceID:     "svc1",
		ParticipantID: "p-me",
		IsLeader:      true,
		SetList:       testSetList,
		Send:          rec.send,
	})
	defer c2.Close()
	deliver(c2, EventLeaderChanged, LeaderChangedPayload{NewLeaderID: "p-me"})
	if state := c2.Snapshot(); state.Mode != ModeLeader {
		t.Fatalf("confirmed leader mode = %s", state.Mode)
	}
}

func TestConvergenceThroughRegistry(t *testing.T) {
	// End-to-end over the server room: leader controller -> registry ->
	// follower controller, no sockets involved.
	reg := NewRegistry()
	leaderConn := newTestConn(reg, "p-leader")
	followerConn := newTestConn(reg, "p-follower")
	reg.Join("svc1", leaderConn, "p-leader", RoleLeader, true)
	reg.Join("svc1", followerConn, "p-follower", RoleFollower, false)
	drain(leaderConn)
	drain(followerConn)

	follower := NewController(ControllerConfig{
		ServiceID:     "svc1",
		ParticipantID: "p-follower",
		SetList:       testSetList,
	})
	defer follower.Close()

	leader := NewController(ControllerConfig{
		ServiceID:     "svc1",
		ParticipantID: "p-leader",
		IsLeader:      true,
		SetList:       testSetList,
		Send: func(env Envelope) error {
			switch env.Type {
			case EventLeaderNavigate:
				p, err := decodePayload[NavigatePayload](env.Payload)
				if err != nil {
					return err
				}
				reg.Navigate("svc1", leaderConn, p)
			case EventLeaderTranspose:
				p, err := decodePayload[TransposePayload](env.Payload)
				if err != nil {
					return err
				}
				reg.Transpose("svc1", leaderConn, p)
			}
			return nil
		},
	})
	defer leader.Close()

	leader.NavigateTo(2)
	leader.SetTransposition(4)
	leader.Snapshot()

	// Pump everything the room queued for the follower into its
	// controller.
	for {
		select {
		case data := <-followerConn.send:
			var env Envelope
			if err := decodeEnvelope(data, &env); err != nil {
				t.Fatal(err)
			}
			follower.HandleIncoming(env)
		default:
			leaderState := leader.Snapshot()
			followerState := follower.Snapshot()
			if followerState.SongIndex != leaderState.SongIndex ||
				followerState.SongID != leaderState.SongID ||
				followerState.Transposition != leaderState.Transposition {
				t.Fatalf("diverged: leader %+v follower %+v", leaderState, followerState)
			}
			return
		}
	}
}

func TestSnapshotDuringCloseSeesFinalState(t *testing.T) {
	rec := &sendRecorder{}
	c := newFollowerController(t, rec)

	deliver(c, EventLeaderNavigated, NavigatePayload{SongID: "song2", SongIndex: 1})
	if got := c.Snapshot(); got.SongIndex != 1 {
		t.Fatalf("song index = %d before close, want 1", got.SongIndex)
	}

	// Hammer Snapshot while Close races the run loop's last command; every
	// call must return a coherent state, whichever side wins.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Snapshot()
		}()
	}
	c.Close()
	wg.Wait()

	state := c.Snapshot()
	if state.SongIndex != 1 || state.SongID != "song2" {
		t.Fatalf("state after close = %+v", state)
	}
}
