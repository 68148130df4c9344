package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestSetListRoundTripPostgres exercises the set-list read model end to end
// against a real database: ordering, reordering and per-song transposition
// write-back. Skipped unless SOLUFLOW_TEST_DATABASE_URL is set.
func TestSetListRoundTripPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dsn := strings.TrimSpace(os.Getenv("SOLUFLOW_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("SOLUFLOW_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	s := NewPostgresStore(db)

	user, err := s.CreateUser(ctx, "leader@example.com", "Leader", "not-a-real-hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	ws := Workspace{ID: "ws_test", Name: "Main", Slug: "main"}
	if err := s.InsertWorkspace(ctx, ws); err != nil {
		t.Fatalf("insert workspace: %v", err)
	}

	songIDs := []string{"song_a", "song_b", "song_c"}
	for i, id := range songIDs {
		song := Song{
			ID:          id,
			WorkspaceID: ws.ID,
			Title:       "Song " + strings.ToUpper(id[len(id)-1:]),
			Key:         "G",
			CreatedBy:   user.ID,
		}
		_ = i
		if err := s.InsertSong(ctx, song); err != nil {
			t.Fatalf("insert song %s: %v", id, err)
		}
	}

	svc := Service{ID: "svc_test", WorkspaceID: ws.ID, Name: "Friday Night", ServiceDate: time.Now(), CreatedBy: user.ID}
	if err := s.InsertService(ctx, svc); err != nil {
		t.Fatalf("insert service: %v", err)
	}

	for _, id := range songIDs {
		if err := s.AddSetListEntry(ctx, svc.ID, id, 0); err != nil {
			t.Fatalf("add entry %s: %v", id, err)
		}
	}

	entries, err := s.ListSetList(ctx, svc.ID)
	if err != nil {
		t.Fatalf("list set list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Position != i {
			t.Fatalf("entry %d has position %d", i, entry.Position)
		}
		if entry.SongID != songIDs[i] {
			t.Fatalf("entry %d is %s, expected %s", i, entry.SongID, songIDs[i])
		}
	}

	// Reverse the order and verify positions follow.
	if err := s.ReorderSetList(ctx, svc.ID, []string{"song_c", "song_b", "song_a"}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	entries, err = s.ListSetList(ctx, svc.ID)
	if err != nil {
		t.Fatalf("list after reorder: %v", err)
	}
	if entries[0].SongID != "song_c" || entries[2].SongID != "song_a" {
		t.Fatalf("reorder not applied: %+v", entries)
	}

	// Transposition write-back, the durable half of live replication.
	if err := s.SetTransposition(ctx, svc.ID, "song_b", 2); err != nil {
		t.Fatalf("set transposition: %v", err)
	}
	got, err := s.GetTransposition(ctx, svc.ID, "song_b")
	if err != nil {
		t.Fatalf("get transposition: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected transposition 2, got %d", got)
	}

	if _, err := s.GetTransposition(ctx, svc.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
