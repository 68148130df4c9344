// Package live implements the real-time shared viewing session: one leader
// drives the current song and transposition for a room of followers over
// WebSocket, while each follower may drop into free mode at any time.
package live

import (
	"encoding/json"
	"fmt"
)

type EventType string

// Client -> server events.
const (
	EventJoinService     EventType = "join-service"
	EventLeaveService    EventType = "leave-service"
	EventLeaderNavigate  EventType = "leader-navigate"
	EventLeaderTranspose EventType = "leader-transpose"
	EventRequestSync     EventType = "request-sync"
)

// Server -> client events.
const (
	EventLeaderNavigated    EventType = "leader-navigated"
	EventLeaderTransposed   EventType = "leader-transposed"
	EventSyncState          EventType = "sync-state"
	EventRoomUpdate         EventType = "room-update"
	EventBecameLeader       EventType = "became-leader"
	EventLeaderChanged      EventType = "leader-changed"
	EventLeaderDisconnected EventType = "leader-disconnected"
	EventLeaderReconnected  EventType = "leader-reconnected"
)

// Envelope is the wire frame for every live event.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(eventType EventType, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: eventType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{Type: eventType, Payload: raw}, nil
}

func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type, err)
	}
	return data, nil
}

func mustEncode(eventType EventType, payload any) []byte {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		panic(err)
	}
	data, err := env.Encode()
	if err != nil {
		panic(err)
	}
	return data
}

// JoinPayload registers a connection under a service room. IsLeader is the
// client's claim; the room records the most recent claim (see Registry.Join).
type JoinPayload struct {
	ServiceID     string `json:"serviceId"`
	ParticipantID string `json:"participantId,omitempty"`
	Role          string `json:"role,omitempty"`
	IsLeader      bool   `json:"isLeader,omitempty"`
}

type LeavePayload struct {
	ServiceID string `json:"serviceId"`
}

// NavigatePayload carries the inline transposition when the leader's client
// knows it, so followers can apply (song, transposition) in one step.
type NavigatePayload struct {
	ServiceID     string `json:"serviceId,omitempty"`
	SongID        string `json:"songId"`
	SongIndex     int    `json:"songIndex"`
	Transposition *int   `json:"transposition,omitempty"`
}

// TransposePayload names the song it applies to so followers can discard
// stale events after navigating away on their own.
type TransposePayload struct {
	ServiceID     string `json:"serviceId,omitempty"`
	Transposition int    `json:"transposition"`
	SongID        string `json:"songId,omitempty"`
}

type SyncStatePayload struct {
	CurrentSongIndex *int   `json:"currentSongIndex,omitempty"`
	SongID           string `json:"songId,omitempty"`
	Transposition    *int   `json:"transposition,omitempty"`
	FontSize         *int   `json:"fontSize,omitempty"`
}

type RoomUpdatePayload struct {
	LeaderConnectionID string `json:"leaderConnectionId"`
	FollowerCount      int    `json:"followerCount"`
}

type BecameLeaderPayload struct {
	ServiceID string `json:"serviceId"`
}

type LeaderChangedPayload struct {
	NewLeaderID string `json:"newLeaderId"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

func decodeEnvelope(data []byte, env *Envelope) error {
	if err := json.Unmarshal(data, env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return fmt.Errorf("decode envelope: missing type")
	}
	return nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
