package live

import (
	"context"
	"log"
	"time"
)

// Mode is a participant's stance toward replicated leader state.
type Mode string

const (
	// ModeLeader participants are authoritative and never follow.
	ModeLeader Mode = "leader"
	// ModeFollowing participants mirror the leader's navigation.
	ModeFollowing Mode = "following"
	// ModeFree participants browse independently; inbound replication is
	// ignored until they explicitly re-follow.
	ModeFree Mode = "free"
)

// ControllerSetListEntry is the controller's local snapshot of one set-list
// slot: the shared ordering contract plus the persisted default key.
type ControllerSetListEntry struct {
	SongID        string
	Transposition int
}

// PersistFunc writes a transposition back to the durable set list. Failures
// are logged and never block replication.
type PersistFunc func(ctx context.Context, serviceID, songID string, transposition int) error

// ControllerConfig wires a Controller to its transport and read model.
type ControllerConfig struct {
	ServiceID     string
	ParticipantID string
	IsLeader      bool
	SetList       []ControllerSetListEntry

	// Send pushes an event toward the server. May be swapped via
	// SetSend when the underlying transport reconnects.
	Send func(Envelope) error
	// Persist is consulted only while leading.
	Persist PersistFunc

	// FallbackInterval bounds how long a follower waits for a
	// transposition trailing a navigation. Zero means 2500ms.
	FallbackInterval time.Duration
	FontSize         int
}

// ControllerState is an observable copy of the participant's rendering
// state.
type ControllerState struct {
	Mode          Mode
	SongIndex     int
	SongID        string
	Transposition int
	FontSize      int
	LeaderPresent bool
}

const defaultFallbackInterval = 2500 * time.Millisecond

// Controller decides what a participant's rendering state becomes for every
// local action and inbound replicated event. All decisions run on a single
// goroutine fed through a mailbox, so handlers always see current state and
// no mutable state escapes the loop.
type Controller struct {
	cfg      ControllerConfig
	mailbox  chan controllerCommand
	done     chan struct{}
	stopped  chan struct{}
	interval time.Duration

	// Everything below is owned by the run loop.
	mode          Mode
	songIndex     int
	songID        string
	transposition int
	fontSize      int
	leaderPresent bool
	seenKeys      map[string]int  // songID -> last transposition seen this session
	initialized   map[string]bool // songID -> (song, transposition) pair established
	watchdog      *time.Timer
	watchdogGen   int
	watchdogSong  string
	sendFn        func(Envelope) error
}

type controllerCommand interface{ isControllerCommand() }

type cmdNavigate struct{ index int }
type cmdSetTransposition struct{ value int }
type cmdSetFontSize struct{ size int }
type cmdToggleFollow struct{}
type cmdInbound struct{ env Envelope }
type cmdWatchdogFired struct {
	gen    int
	songID string
}
type cmdSetSend struct{ send func(Envelope) error }
type cmdSnapshot struct{ reply chan ControllerState }

func (cmdNavigate) isControllerCommand()         {}
func (cmdSetTransposition) isControllerCommand() {}
func (cmdSetFontSize) isControllerCommand()      {}
func (cmdToggleFollow) isControllerCommand()     {}
func (cmdInbound) isControllerCommand()          {}
func (cmdWatchdogFired) isControllerCommand()    {}
func (cmdSetSend) isControllerCommand()          {}
func (cmdSnapshot) isControllerCommand()         {}

// NewController builds and starts a controller. Call Close on teardown so
// the fallback watchdog cannot outlive the view that owns it.
func NewController(cfg ControllerConfig) *Controller {
	interval := cfg.FallbackInterval
	if interval <= 0 {
		interval = defaultFallbackInterval
	}
	mode := ModeFollowing
	if cfg.IsLeader {
		mode = ModeLeader
	}

	c := &Controller{
		cfg:         cfg,
		mailbox:     make(chan controllerCommand, 32),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		interval:    interval,
		mode:        mode,
		songIndex:   -1,
		fontSize:    cfg.FontSize,
		seenKeys:    make(map[string]int),
		initialized: make(map[string]bool),
		sendFn:      cfg.Send,
	}
	go c.run()
	return c
}

// Close tears the controller down, cancelling any pending watchdog.
func (c *Controller) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	<-c.stopped
}

func (c *Controller) post(cmd controllerCommand) {
	select {
	case c.mailbox <- cmd:
	case <-c.done:
	}
}

// NavigateTo moves this participant to the set-list slot at index. Leaders
// additionally persist and replicate the move.
func (c *Controller) NavigateTo(index int) { c.post(cmdNavigate{index: index}) }

// SetTransposition changes the displayed key offset for the current song.
func (c *Controller) SetTransposition(value int) { c.post(cmdSetTransposition{value: value}) }

// SetFontSize is personal preference only; it never replicates.
func (c *Controller) SetFontSize(size int) { c.post(cmdSetFontSize{size: size}) }

// ToggleFollow flips a follower between following and free mode. Leaders
// ignore it.
func (c *Controller) ToggleFollow() { c.post(cmdToggleFollow{}) }

// HandleIncoming feeds one replicated event from the transport.
func (c *Controller) HandleIncoming(env Envelope) { c.post(cmdInbound{env: env}) }

// SetSend swaps the outbound path after a transport reconnect.
func (c *Controller) SetSend(send func(Envelope) error) { c.post(cmdSetSend{send: send}) }

// Snapshot returns the current rendering state.
func (c *Controller) Snapshot() ControllerState {
	reply := make(chan ControllerState, 1)
	select {
	case c.mailbox <- cmdSnapshot{reply: reply}:
		select {
		case state := <-reply:
			return state
		case <-c.stopped:
		}
	case <-c.done:
		// Close was signalled but the loop may still be applying a
		// final command; wait for it to exit before reading directly.
		<-c.stopped
	}
	return c.snapshotAfterStop()
}

func (c *Controller) snapshotAfterStop() ControllerState {
	// The loop has exited; its state is quiescent and safe to read.
	return ControllerState{
		Mode:          c.mode,
		SongIndex:     c.songIndex,
		SongID:        c.songID,
		Transposition: c.transposition,
		FontSize:      c.fontSize,
		LeaderPresent: c.leaderPresent,
	}
}

func (c *Controller) run() {
	defer close(c.stopped)
	defer c.cancelWatchdog()

	for {
		select {
		case <-c.done:
			return
		case cmd := <-c.mailbox:
			c.apply(cmd)
		}
	}
}

func (c *Controller) apply(cmd controllerCommand) {
	switch cmd := cmd.(type) {
	case cmdSnapshot:
		cmd.reply <- ControllerState{
			Mode:          c.mode,
			SongIndex:     c.songIndex,
			SongID:        c.songID,
			Transposition: c.transposition,
			FontSize:      c.fontSize,
			LeaderPresent: c.leaderPresent,
		}
	case cmdSetSend:
		c.sendFn = cmd.send
	case cmdNavigate:
		c.localNavigate(cmd.index)
	case cmdSetTransposition:
		c.localTranspose(cmd.value)
	case cmdSetFontSize:
		c.fontSize = cmd.size
	case cmdToggleFollow:
		c.toggleFollow()
	case cmdWatchdogFired:
		c.watchdogFired(cmd.gen, cmd.songID)
	case cmdInbound:
		c.inbound(cmd.env)
	}
}

// localNavigate applies a user-initiated move. The last transposition seen
// for a revisited song wins over the set list's persisted default; the
// persisted value is only the first-visit tie-breaker.
func (c *Controller) localNavigate(index int) {
	if index < 0 || index >= len(c.cfg.SetList) {
		return
	}
	c.cancelWatchdog()

	entry := c.cfg.SetList[index]
	c.songIndex = index
	c.songID = entry.SongID
	if remembered, ok := c.seenKeys[entry.SongID]; ok {
		c.transposition = remembered
	} else {
		c.transposition = entry.Transposition
	}
	c.seenKeys[entry.SongID] = c.transposition
	c.initialized[entry.SongID] = true

	if c.mode != ModeLeader {
		return
	}

	// Leader: optimistic local apply above, then persist and replicate.
	// The two are deliberately independent; neither failure blocks the
	// other (followers should still see intent if the durable write
	// fails, and the leader can retry on its next action).
	c.persistAsync(entry.SongID, c.transposition)
	transposition := c.transposition
	c.send(EventLeaderNavigate, NavigatePayload{
		ServiceID:     c.cfg.ServiceID,
		SongID:        entry.SongID,
		SongIndex:     index,
		Transposition: &transposition,
	})
}

func (c *Controller) localTranspose(value int) {
	if c.songID == "" {
		return
	}
	c.transposition = value
	c.seenKeys[c.songID] = value
	c.initialized[c.songID] = true

	if c.mode != ModeLeader {
		return
	}
	c.persistAsync(c.songID, value)
	c.send(EventLeaderTranspose, TransposePayload{
		ServiceID:     c.cfg.ServiceID,
		Transposition: value,
		SongID:        c.songID,
	})
}

func (c *Controller) toggleFollow() {
	switch c.mode {
	case ModeFollowing:
		c.mode = ModeFree
	case ModeFree:
		c.mode = ModeFollowing
		// Catch up immediately instead of waiting for the next leader
		// action.
		c.send(EventRequestSync, nil)
	case ModeLeader:
		// Leaders are authoritative; there is nothing to follow.
	}
}

func (c *Controller) inbound(env Envelope) {
	switch env.Type {
	case EventLeaderNavigated:
		p, err := decodePayload[NavigatePayload](env.Payload)
		if err != nil {
			return
		}
		c.leaderNavigated(p)

	case EventLeaderTransposed:
		p, err := decodePayload[TransposePayload](env.Payload)
		if err != nil {
			return
		}
		c.leaderTransposed(p)

	case EventSyncState:
		p, err := decodePayload[SyncStatePayload](env.Payload)
		if err != nil {
			return
		}
		c.syncState(p)

	case EventRoomUpdate:
		p, err := decodePayload[RoomUpdatePayload](env.Payload)
		if err != nil {
			return
		}
		c.leaderPresent = p.LeaderConnectionID != ""

	case EventBecameLeader:
		c.cancelWatchdog()
		c.mode = ModeLeader
		c.leaderPresent = true

	case EventLeaderChanged:
		p, err := decodePayload[LeaderChangedPayload](env.Payload)
		if err != nil {
			return
		}
		c.leaderPresent = true
		if c.mode == ModeLeader && p.NewLeaderID != c.cfg.ParticipantID {
			// Demoted: degrade to free mode rather than silently
			// snapping to the new leader's state.
			c.mode = ModeFree
		}

	case EventLeaderDisconnected:
		c.leaderPresent = false
		if c.mode == ModeFollowing {
			c.mode = ModeFree
		}

	case EventLeaderReconnected:
		// Re-enables the option to follow; never auto-resumes.
		c.leaderPresent = true
	}
}

func (c *Controller) leaderNavigated(p NavigatePayload) {
	if c.mode != ModeFollowing {
		return
	}
	// The set list is the shared ordering contract; an index or song we
	// do not hold locally means a stale or foreign event.
	if p.SongIndex < 0 || p.SongIndex >= len(c.cfg.SetList) {
		return
	}
	entry := c.cfg.SetList[p.SongIndex]
	if p.SongID != "" && p.SongID != entry.SongID {
		return
	}

	c.cancelWatchdog()
	c.songIndex = p.SongIndex
	c.songID = entry.SongID

	if p.Transposition != nil {
		// Atomic path: song and key arrive together.
		c.transposition = *p.Transposition
		c.seenKeys[entry.SongID] = *p.Transposition
		c.initialized[entry.SongID] = true
		return
	}

	// Compatibility path: an older peer will send the transposition as a
	// separate event, or never. Bound the wait.
	c.initialized[entry.SongID] = false
	c.startWatchdog(entry.SongID)
}

func (c *Controller) leaderTransposed(p TransposePayload) {
	if c.mode != ModeFollowing {
		return
	}
	// Discard stale events for songs we are no longer displaying.
	if p.SongID != "" && p.SongID != c.songID {
		return
	}
	if c.songID == "" {
		return
	}
	c.cancelWatchdog()
	c.transposition = p.Transposition
	c.seenKeys[c.songID] = p.Transposition
	c.initialized[c.songID] = true
}

func (c *Controller) syncState(p SyncStatePayload) {
	if c.mode != ModeFollowing {
		return
	}
	if p.CurrentSongIndex != nil {
		index := *p.CurrentSongIndex
		if index >= 0 && index < len(c.cfg.SetList) {
			entry := c.cfg.SetList[index]
			if p.SongID == "" || p.SongID == entry.SongID {
				c.cancelWatchdog()
				c.songIndex = index
				c.songID = entry.SongID
			}
		}
	}
	if p.Transposition != nil && c.songID != "" {
		c.transposition = *p.Transposition
		c.seenKeys[c.songID] = *p.Transposition
		c.initialized[c.songID] = true
	}
	// FontSize deliberately ignored: personal preference never
	// replicates.
}

func (c *Controller) startWatchdog(songID string) {
	c.watchdogGen++
	gen := c.watchdogGen
	c.watchdogSong = songID
	c.watchdog = time.AfterFunc(c.interval, func() {
		c.post(cmdWatchdogFired{gen: gen, songID: songID})
	})
}

func (c *Controller) cancelWatchdog() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	c.watchdogGen++
	c.watchdogSong = ""
}

// watchdogFired resolves the compatibility path: no transposition arrived
// in time, so fall back to the set list's persisted value for that song.
func (c *Controller) watchdogFired(gen int, songID string) {
	if gen != c.watchdogGen || songID != c.watchdogSong {
		return
	}
	c.watchdog = nil
	c.watchdogSong = ""
	if c.songID != songID || c.initialized[songID] {
		return
	}
	for _, entry := range c.cfg.SetList {
		if entry.SongID == songID {
			c.transposition = entry.Transposition
			break
		}
	}
	c.seenKeys[songID] = c.transposition
	c.initialized[songID] = true
}

func (c *Controller) persistAsync(songID string, transposition int) {
	if c.cfg.Persist == nil {
		return
	}
	serviceID := c.cfg.ServiceID
	persist := c.cfg.Persist
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := persist(ctx, serviceID, songID, transposition); err != nil {
			log.Printf("live: persist transposition for %s failed (will retry on next action): %v", songID, err)
		}
	}()
}

func (c *Controller) send(eventType EventType, payload any) {
	if c.sendFn == nil {
		return
	}
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		log.Printf("live: encode %s failed: %v", eventType, err)
		return
	}
	if err := c.sendFn(env); err != nil {
		log.Printf("live: send %s failed: %v", eventType, err)
	}
}
