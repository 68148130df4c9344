package live

import (
	"log"
	"sync"
)

// Registry owns the mapping from service ID to live room and serializes
// all room mutations. Rooms are created on first join and deleted when the
// last member leaves; nothing here survives a process restart, and callers
// are expected to rejoin after one.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (reg *Registry) room(serviceID string, create bool) *Room {
	reg.mu.RLock()
	r, ok := reg.rooms[serviceID]
	reg.mu.RUnlock()
	if ok || !create {
		return r
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok = reg.rooms[serviceID]; ok {
		return r
	}
	r = newRoom(serviceID)
	reg.rooms[serviceID] = r
	return r
}

// Join registers the connection under the room. A true claimedLeader makes
// this connection the room's leader; if a leader already exists the newer
// claim replaces it silently, so the room only ever tracks the most recent
// claim. Leadership reclaimed after a leader disconnect is announced to
// followers as a reconnect.
func (reg *Registry) Join(serviceID string, c *Conn, participantID string, role Role, claimedLeader bool) {
	// A room pointer fetched here can be garbage-collected by a concurrent
	// Leave before we lock it; members added to such a room would be
	// unreachable. Retry until the locked room is still registered.
	var r *Room
	for {
		r = reg.room(serviceID, true)
		r.mu.Lock()
		if !r.collected {
			break
		}
		r.mu.Unlock()
	}
	defer r.mu.Unlock()

	r.members[c.id] = member{conn: c, participantID: participantID, role: role}

	reclaimed := false
	if claimedLeader {
		if r.leaderConnID != "" && r.leaderConnID != c.id {
			log.Printf("live: room %s leader claim by %s replaces %s", serviceID, c.id, r.leaderConnID)
		}
		reclaimed = r.leaderConnID == "" && r.hadLeader
		r.leaderConnID = c.id
		r.hadLeader = true
	}

	state := r.snapshotLocked()
	update := mustEncode(EventRoomUpdate, RoomUpdatePayload{
		LeaderConnectionID: state.LeaderConnectionID,
		FollowerCount:      state.FollowerCount,
	})
	r.broadcastLocked(c.id, update)
	r.sendToLocked(c.id, update)

	if reclaimed {
		r.broadcastLocked(c.id, mustEncode(EventLeaderReconnected, NoticePayload{Message: "leader reconnected"}))
	}
}

// Leave removes the connection. Losing the leader clears the leadership
// slot and tells remaining followers to fall back to free mode; an emptied
// room is garbage-collected.
func (reg *Registry) Leave(serviceID string, c *Conn) {
	r := reg.room(serviceID, false)
	if r == nil {
		return
	}

	r.mu.Lock()
	if _, ok := r.members[c.id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, c.id)

	wasLeader := r.leaderConnID == c.id
	if wasLeader {
		r.leaderConnID = ""
	}
	empty := len(r.members) == 0

	if !empty {
		if wasLeader {
			r.broadcastLocked(c.id, mustEncode(EventLeaderDisconnected, NoticePayload{Message: "leader disconnected"}))
		}
		state := r.snapshotLocked()
		r.broadcastLocked(c.id, mustEncode(EventRoomUpdate, RoomUpdatePayload{
			LeaderConnectionID: state.LeaderConnectionID,
			FollowerCount:      state.FollowerCount,
		}))
	}
	r.mu.Unlock()

	if empty {
		reg.mu.Lock()
		// Re-check under the registry lock; someone may have joined since.
		if r2, ok := reg.rooms[serviceID]; ok && r2 == r {
			r.mu.Lock()
			if len(r.members) == 0 {
				r.collected = true
				delete(reg.rooms, serviceID)
			}
			r.mu.Unlock()
		}
		reg.mu.Unlock()
	}
}

// Navigate moves the room to a new song. Calls from anyone but the current
// leader are silently ignored.
func (reg *Registry) Navigate(serviceID string, c *Conn, p NavigatePayload) {
	r := reg.room(serviceID, false)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leaderConnID != c.id {
		log.Printf("live: room %s dropping navigate from non-leader %s", serviceID, c.id)
		return
	}

	r.songID = p.SongID
	r.songIndex = p.SongIndex
	if p.Transposition != nil {
		r.transposition = *p.Transposition
	}

	r.broadcastLocked(c.id, mustEncode(EventLeaderNavigated, NavigatePayload{
		SongID:        p.SongID,
		SongIndex:     p.SongIndex,
		Transposition: p.Transposition,
	}))
}

// Transpose changes the room's current transposition. Leader-only, same
// silent gate as Navigate.
func (reg *Registry) Transpose(serviceID string, c *Conn, p TransposePayload) {
	r := reg.room(serviceID, false)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leaderConnID != c.id {
		log.Printf("live: room %s dropping transpose from non-leader %s", serviceID, c.id)
		return
	}

	r.transposition = p.Transposition
	songID := p.SongID
	if songID == "" {
		songID = r.songID
	}

	r.broadcastLocked(c.id, mustEncode(EventLeaderTransposed, TransposePayload{
		Transposition: p.Transposition,
		SongID:        songID,
	}))
}

// ChangeLeader reassigns leadership to the named participant. This is an
// administrative action: the capability check happens upstream at the HTTP
// layer, not here.
func (reg *Registry) ChangeLeader(serviceID, newParticipantID string) bool {
	r := reg.room(serviceID, false)
	if r == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	connID := r.connByParticipantLocked(newParticipantID)
	if connID == "" {
		return false
	}

	r.leaderConnID = connID
	r.hadLeader = true

	changed := mustEncode(EventLeaderChanged, LeaderChangedPayload{NewLeaderID: newParticipantID})
	r.broadcastLocked("", changed)
	r.sendToLocked(connID, mustEncode(EventBecameLeader, BecameLeaderPayload{ServiceID: serviceID}))
	return true
}

// SyncState sends the room's current state to one connection, for a
// follower catching up mid-session without waiting for the next event.
func (reg *Registry) SyncState(serviceID string, c *Conn) {
	r := reg.room(serviceID, false)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.songIndex < 0 {
		return
	}

	index := r.songIndex
	transposition := r.transposition
	r.sendToLocked(c.id, mustEncode(EventSyncState, SyncStatePayload{
		CurrentSongIndex: &index,
		SongID:           r.songID,
		Transposition:    &transposition,
	}))
}

// Snapshot reports the room's current state, if the room exists.
func (reg *Registry) Snapshot(serviceID string) (RoomState, bool) {
	r := reg.room(serviceID, false)
	if r == nil {
		return RoomState{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(), true
}
