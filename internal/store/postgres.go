package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shilo-maker/soluflow-sub001/internal/util"
)

var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, email, displayName, passwordHash string) (User, error) {
	user := User{ID: util.NewID("usr"), Email: email, DisplayName: displayName, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_memberships (user_id, role)
		VALUES ($1, 'member')
		ON CONFLICT (user_id) DO NOTHING
	`, user.ID); err != nil {
		return User{}, fmt.Errorf("upsert membership: %w", err)
	}

	user.Role = "member"
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	role, err := s.getRole(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Role = role
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Email, &user.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	role, err := s.getRole(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Role = role
	return user, nil
}

func (s *PostgresStore) getRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM workspace_memberships WHERE user_id=$1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "member", nil
	}
	if err != nil {
		return "", fmt.Errorf("read role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) SetUserRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_memberships (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role=EXCLUDED.role
	`, userID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

// --- refresh sessions / token revocation ---

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.email, u.display_name, COALESCE(wm.role, 'member')
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		LEFT JOIN workspace_memberships wm ON wm.user_id = u.id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Email, &user.DisplayName, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// --- workspaces ---

func (s *PostgresStore) GetDefaultWorkspace(ctx context.Context) (Workspace, error) {
	var ws Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at, updated_at FROM workspaces ORDER BY created_at ASC LIMIT 1
	`).Scan(&ws.ID, &ws.Name, &ws.Slug, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Workspace{}, ErrNotFound
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("get default workspace: %w", err)
	}
	return ws, nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (Workspace, error) {
	var ws Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at, updated_at FROM workspaces WHERE id=$1
	`, id).Scan(&ws.ID, &ws.Name, &ws.Slug, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Workspace{}, ErrNotFound
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("get workspace: %w", err)
	}
	return ws, nil
}

func (s *PostgresStore) InsertWorkspace(ctx context.Context, ws Workspace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, slug) VALUES ($1, $2, $3)
	`, ws.ID, ws.Name, ws.Slug)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, created_at, updated_at FROM workspaces ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]Workspace, 0)
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Slug, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, nil
}

// --- songs ---

func (s *PostgresStore) InsertSong(ctx context.Context, song Song) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (id, workspace_id, title, author, song_key, lyrics, language, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, song.ID, song.WorkspaceID, song.Title, song.Author, song.Key, song.Lyrics, song.Language, song.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert song: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSong(ctx context.Context, songID string) (Song, error) {
	var song Song
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, title, author, song_key, lyrics, language, created_by, created_at, updated_at
		FROM songs WHERE id=$1
	`, songID).Scan(&song.ID, &song.WorkspaceID, &song.Title, &song.Author, &song.Key, &song.Lyrics, &song.Language, &song.CreatedBy, &song.CreatedAt, &song.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Song{}, ErrNotFound
	}
	if err != nil {
		return Song{}, fmt.Errorf("get song: %w", err)
	}
	return song, nil
}

func (s *PostgresStore) ListSongs(ctx context.Context, workspaceID string) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, title, author, song_key, language, created_by, created_at, updated_at
		FROM songs WHERE workspace_id=$1 ORDER BY title ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	items := make([]Song, 0)
	for rows.Next() {
		var song Song
		if err := rows.Scan(&song.ID, &song.WorkspaceID, &song.Title, &song.Author, &song.Key, &song.Language, &song.CreatedBy, &song.CreatedAt, &song.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		items = append(items, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateSong(ctx context.Context, song Song) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE songs SET title=$2, author=$3, song_key=$4, lyrics=$5, language=$6, updated_at=NOW()
		WHERE id=$1
	`, song.ID, song.Title, song.Author, song.Key, song.Lyrics, song.Language)
	if err != nil {
		return fmt.Errorf("update song: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteSong(ctx context.Context, songID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM songs WHERE id=$1`, songID)
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- services (set lists) ---

func (s *PostgresStore) InsertService(ctx context.Context, svc Service) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, workspace_id, name, service_date, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, svc.ID, svc.WorkspaceID, svc.Name, svc.ServiceDate, svc.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetService(ctx context.Context, serviceID string) (Service, error) {
	var svc Service
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, service_date, created_by, created_at, updated_at
		FROM services WHERE id=$1
	`, serviceID).Scan(&svc.ID, &svc.WorkspaceID, &svc.Name, &svc.ServiceDate, &svc.CreatedBy, &svc.CreatedAt, &svc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Service{}, ErrNotFound
	}
	if err != nil {
		return Service{}, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *PostgresStore) ListServices(ctx context.Context, workspaceID string) ([]Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, service_date, created_by, created_at, updated_at
		FROM services WHERE workspace_id=$1 ORDER BY service_date DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	items := make([]Service, 0)
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.WorkspaceID, &svc.Name, &svc.ServiceDate, &svc.CreatedBy, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		items = append(items, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteService(ctx context.Context, serviceID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM services WHERE id=$1`, serviceID)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- set list entries ---

func (s *PostgresStore) AddSetListEntry(ctx context.Context, serviceID, songID string, transposition int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_songs (service_id, song_id, position, transposition)
		VALUES ($1, $2, COALESCE((SELECT MAX(position)+1 FROM service_songs WHERE service_id=$1), 0), $3)
		ON CONFLICT (service_id, song_id) DO UPDATE SET transposition=EXCLUDED.transposition
	`, serviceID, songID, transposition)
	if err != nil {
		return fmt.Errorf("add set list entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveSetListEntry(ctx context.Context, serviceID, songID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM service_songs WHERE service_id=$1 AND song_id=$2
	`, serviceID, songID)
	if err != nil {
		return fmt.Errorf("remove set list entry: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSetList(ctx context.Context, serviceID string) ([]SetListEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ss.service_id, ss.song_id, ss.position, ss.transposition, sg.title, sg.author, sg.song_key
		FROM service_songs ss
		JOIN songs sg ON sg.id = ss.song_id
		WHERE ss.service_id=$1
		ORDER BY ss.position ASC
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list set list: %w", err)
	}
	defer rows.Close()

	items := make([]SetListEntry, 0)
	for rows.Next() {
		var entry SetListEntry
		if err := rows.Scan(&entry.ServiceID, &entry.SongID, &entry.Position, &entry.Transposition, &entry.Title, &entry.Author, &entry.Key); err != nil {
			return nil, fmt.Errorf("scan set list entry: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate set list: %w", err)
	}
	return items, nil
}

// ReorderSetList rewrites entry positions to match the given song order.
// Songs missing from the list keep their relative order after the listed ones.
func (s *PostgresStore) ReorderSetList(ctx context.Context, serviceID string, songIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	for position, songID := range songIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE service_songs SET position=$3 WHERE service_id=$1 AND song_id=$2
		`, serviceID, songID, position); err != nil {
			return fmt.Errorf("reorder entry %s: %w", songID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTransposition(ctx context.Context, serviceID, songID string) (int, error) {
	var transposition int
	err := s.db.QueryRowContext(ctx, `
		SELECT transposition FROM service_songs WHERE service_id=$1 AND song_id=$2
	`, serviceID, songID).Scan(&transposition)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get transposition: %w", err)
	}
	return transposition, nil
}

func (s *PostgresStore) SetTransposition(ctx context.Context, serviceID, songID string, transposition int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE service_songs SET transposition=$3 WHERE service_id=$1 AND song_id=$2
	`, serviceID, songID, transposition)
	if err != nil {
		return fmt.Errorf("set transposition: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
