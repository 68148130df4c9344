package store

import "time"

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Workspace struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Song holds the editable song sheet. Lyrics carry inline chord markup;
// Key is the written key before any transposition is applied.
type Song struct {
	ID          string
	WorkspaceID string
	Title       string
	Author      string
	Key         string
	Lyrics      string
	Language    string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Service is a dated set list: the ordered songs planned for one event.
type Service struct {
	ID          string
	WorkspaceID string
	Name        string
	ServiceDate time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SetListEntry is one song slot in a service. Transposition is the
// persisted semitone offset for the song within this service; it is the
// durable side of the value the live session replicates.
type SetListEntry struct {
	ServiceID     string
	SongID        string
	Position      int
	Transposition int

	// Joined song fields, populated on reads.
	Title  string
	Author string
	Key    string
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
