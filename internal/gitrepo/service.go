// Package gitrepo keeps a per-song git repository so every lyrics edit is a
// commit and any historical version can be recovered.
package gitrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/shilo-maker/soluflow-sub001/internal/store"
)

// Content is the versioned snapshot of a song.
type Content struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Key      string `json:"key"`
	Language string `json:"language"`
	Lyrics   string `json:"lyrics"`
}

// Service manages one bare-worktree repository per song under baseDir. A
// per-song mutex serializes all git operations on the same song.
type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureSongRepo initializes the song's repository with a baseline commit.
// Idempotent: an existing repo is left untouched.
func (s *Service) EnsureSongRepo(songID string, initial Content, author string) error {
	lock := s.songLock(songID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(songID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := writeSongFile(path, initial); err != nil {
		return err
	}
	if _, err := worktree.Add("song.json"); err != nil {
		return fmt.Errorf("git add initial content: %w", err)
	}
	hash, err := worktree.Commit("Import song", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit initial content: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// CommitContent records a new version of the song. Committing identical
// content is a no-op returning the current head.
func (s *Service) CommitContent(songID string, content Content, author, message string) (store.CommitInfo, error) {
	lock := s.songLock(songID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(songID))
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	head, err := s.headCommit(repo)
	if err == nil {
		current, cerr := readContentFromCommit(head)
		if cerr == nil && current == content {
			return toCommitInfo(head), nil
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := writeSongFile(worktree.Filesystem.Root(), content); err != nil {
		return store.CommitInfo{}, err
	}
	if _, err := worktree.Add("song.json"); err != nil {
		return store.CommitInfo{}, fmt.Errorf("git add content: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// GetHeadContent returns the latest committed version of the song.
func (s *Service) GetHeadContent(songID string) (Content, store.CommitInfo, error) {
	lock := s.songLock(songID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(songID))
	if err != nil {
		return Content{}, store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}
	commitObj, err := s.headCommit(repo)
	if err != nil {
		return Content{}, store.CommitInfo{}, err
	}
	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return Content{}, store.CommitInfo{}, err
	}
	return content, toCommitInfo(commitObj), nil
}

// GetContentByHash returns the song as of a specific commit. Abbreviated
// hashes are resolved like git does.
func (s *Service) GetContentByHash(songID, hash string) (Content, error) {
	lock := s.songLock(songID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(songID))
	if err != nil {
		return Content{}, fmt.Errorf("open repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Content{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Content{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readContentFromCommit(commitObj)
}

// History lists the song's versions, newest first.
func (s *Service) History(songID string, limit int) ([]store.CommitInfo, error) {
	lock := s.songLock(songID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(songID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// HasChanges reports whether two song versions differ.
func HasChanges(from, to Content) bool {
	return from != to
}

func (s *Service) repoPath(songID string) string {
	return filepath.Join(s.baseDir, songID)
}

func (s *Service) songLock(songID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[songID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[songID] = lock
	return lock
}

func (s *Service) headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func writeSongFile(dir string, content Content) error {
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "song.json"), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write song.json: %w", err)
	}
	return nil
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File("song.json")
	if err != nil {
		return Content{}, fmt.Errorf("load song.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read content bytes: %w", err)
	}

	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func signature(author string) *object.Signature {
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@soluflow.local", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
