package live

import "sync"

// Role tags a member's declared intent at join time.
type Role string

const (
	RoleLeader   Role = "leader"
	RoleFollower Role = "follower"
)

type member struct {
	conn          *Conn
	participantID string
	role          Role
}

// Room holds the authoritative shared state for one live service. All
// mutation goes through the Registry while the room's mutex is held;
// different rooms never contend with each other.
type Room struct {
	serviceID string

	mu            sync.Mutex
	collected     bool // removed from the registry; joiners must not use it
	leaderConnID  string
	hadLeader     bool // a leader has claimed this room at least once
	songID        string
	songIndex     int
	transposition int
	members       map[string]member // keyed by connection ID
}

func newRoom(serviceID string) *Room {
	return &Room{
		serviceID: serviceID,
		songIndex: -1,
		members:   make(map[string]member),
	}
}

// RoomState is a point-in-time copy safe to hand out of the lock.
type RoomState struct {
	ServiceID          string
	LeaderConnectionID string
	SongID             string
	SongIndex          int
	Transposition      int
	MemberCount        int
	FollowerCount      int
}

func (r *Room) snapshotLocked() RoomState {
	followers := len(r.members)
	if r.leaderConnID != "" {
		if _, ok := r.members[r.leaderConnID]; ok {
			followers--
		}
	}
	return RoomState{
		ServiceID:          r.serviceID,
		LeaderConnectionID: r.leaderConnID,
		SongID:             r.songID,
		SongIndex:          r.songIndex,
		Transposition:      r.transposition,
		MemberCount:        len(r.members),
		FollowerCount:      followers,
	}
}

// broadcastLocked fans data out to every member except the excluded
// connection. Delivery is best-effort: a member whose send buffer is full
// is dropped rather than allowed to stall the room.
func (r *Room) broadcastLocked(excludeConnID string, data []byte) {
	leaderDropped := false
	for connID, m := range r.members {
		if connID == excludeConnID {
			continue
		}
		if !m.conn.trySend(data) {
			delete(r.members, connID)
			if r.leaderConnID == connID {
				r.leaderConnID = ""
				leaderDropped = true
			}
		}
	}
	if leaderDropped {
		// The evicted leader's own Leave will find its membership already
		// gone and do nothing, so the loss has to be announced here. The
		// leadership slot is cleared, so the nested sweep cannot re-enter.
		r.broadcastLocked("", mustEncode(EventLeaderDisconnected, NoticePayload{Message: "leader disconnected"}))
		state := r.snapshotLocked()
		r.broadcastLocked("", mustEncode(EventRoomUpdate, RoomUpdatePayload{
			LeaderConnectionID: state.LeaderConnectionID,
			FollowerCount:      state.FollowerCount,
		}))
	}
}

// sendToLocked delivers data to a single member, if still present.
func (r *Room) sendToLocked(connID string, data []byte) {
	if m, ok := r.members[connID]; ok {
		_ = m.conn.trySend(data)
	}
}

func (r *Room) connByParticipantLocked(participantID string) string {
	for connID, m := range r.members {
		if m.participantID == participantID {
			return connID
		}
	}
	return ""
}
