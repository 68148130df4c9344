package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shilo-maker/soluflow-sub001/internal/auth"
	"github.com/shilo-maker/soluflow-sub001/internal/authpw"
	"github.com/shilo-maker/soluflow-sub001/internal/config"
	"github.com/shilo-maker/soluflow-sub001/internal/export"
	"github.com/shilo-maker/soluflow-sub001/internal/gitrepo"
	"github.com/shilo-maker/soluflow-sub001/internal/live"
	"github.com/shilo-maker/soluflow-sub001/internal/rbac"
	"github.com/shilo-maker/soluflow-sub001/internal/search"
	"github.com/shilo-maker/soluflow-sub001/internal/session"
	"github.com/shilo-maker/soluflow-sub001/internal/store"
	"github.com/shilo-maker/soluflow-sub001/internal/transpose"
	"github.com/shilo-maker/soluflow-sub001/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type SongInput struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Key      string `json:"key"`
	Language string `json:"language"`
	Lyrics   string `json:"lyrics"`
}

type ServiceInput struct {
	Name        string    `json:"name"`
	ServiceDate time.Time `json:"serviceDate"`
}

type dataStore interface {
	CreateUser(context.Context, string, string, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SetUserRole(context.Context, string, string) error
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	GetDefaultWorkspace(context.Context) (store.Workspace, error)
	GetWorkspace(context.Context, string) (store.Workspace, error)
	InsertWorkspace(context.Context, store.Workspace) error
	ListWorkspaces(context.Context) ([]store.Workspace, error)
	InsertSong(context.Context, store.Song) error
	GetSong(context.Context, string) (store.Song, error)
	ListSongs(context.Context, string) ([]store.Song, error)
	UpdateSong(context.Context, store.Song) error
	DeleteSong(context.Context, string) error
	InsertService(context.Context, store.Service) error
	GetService(context.Context, string) (store.Service, error)
	ListServices(context.Context, string) ([]store.Service, error)
	DeleteService(context.Context, string) error
	AddSetListEntry(context.Context, string, string, int) error
	RemoveSetListEntry(context.Context, string, string) error
	ListSetList(context.Context, string) ([]store.SetListEntry, error)
	ReorderSetList(context.Context, string, []string) error
	GetTransposition(context.Context, string, string) (int, error)
	SetTransposition(context.Context, string, string, int) error
	Ping(ctx context.Context) error
}

type gitService interface {
	EnsureSongRepo(string, gitrepo.Content, string) error
	CommitContent(string, gitrepo.Content, string, string) (store.CommitInfo, error)
	GetHeadContent(string) (gitrepo.Content, store.CommitInfo, error)
	GetContentByHash(string, string) (gitrepo.Content, error)
	History(string, int) ([]store.CommitInfo, error)
}

type searchService interface {
	Search(search.Query) search.Response
	IndexSong(search.SongRecord)
	DeleteSong(string)
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

// sessionStore holds refresh sessions. Redis when configured, Postgres
// otherwise; the two differ only in where the user snapshot lives.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// pgSessionStore adapts the relational store to the sessionStore shape.
type pgSessionStore struct {
	store dataStore
}

func (p pgSessionStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p pgSessionStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return p.store.LookupRefreshSession(ctx, tokenHash)
}

func (p pgSessionStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	git       gitService
	search    searchService
	exporter  exporter
	registry  *live.Registry
	passwords *authpw.Service
}

// New wires the application service. sessions may be nil, in which case
// refresh sessions live in Postgres.
func New(cfg config.Config, dataStore *store.PostgresStore, gitService *gitrepo.Service, searchService *search.Service, registry *live.Registry, sessions *session.RedisStore) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		registry:  registry,
		passwords: authpw.NewService(dataStore),
	}
	if gitService != nil {
		s.git = gitService
	}
	if searchService != nil {
		s.search = searchService
	}
	if sessions != nil {
		s.sessions = sessions
	} else {
		s.sessions = pgSessionStore{store: dataStore}
	}
	s.exporter = export.NewService(exportStore{store: dataStore})
	return s
}

// Bootstrap makes sure a default workspace exists and warms the search
// index. Safe to call on every start.
func (s *Service) Bootstrap(ctx context.Context) error {
	if _, err := s.store.GetDefaultWorkspace(ctx); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		ws := store.Workspace{
			ID:   util.NewID("ws"),
			Name: "Main",
			Slug: "main",
		}
		if err := s.store.InsertWorkspace(ctx, ws); err != nil {
			return fmt.Errorf("create default workspace: %w", err)
		}
		log.Printf("app: created default workspace %s", ws.ID)
	}
	return nil
}

// --- Sessions ---

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// LiveAuth resolves a bearer token for the WebSocket endpoint.
func (s *Service) LiveAuth(ctx context.Context, token string) (live.Identity, error) {
	sess, err := s.SessionFromToken(ctx, token)
	if err != nil {
		return live.Identity{}, err
	}
	return live.Identity{
		ParticipantID: sess.UserID,
		DisplayName:   sess.UserName,
		Role:          sess.Role,
	}, nil
}

// --- Workspaces ---

func (s *Service) ListWorkspaces(ctx context.Context) ([]map[string]any, error) {
	workspaces, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(workspaces))
	for _, ws := range workspaces {
		items = append(items, workspacePayload(ws))
	}
	return items, nil
}

func (s *Service) CreateWorkspace(ctx context.Context, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required", nil)
	}
	ws := store.Workspace{
		ID:   util.NewID("ws"),
		Name: name,
		Slug: slugify(name),
	}
	if err := s.store.InsertWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	return workspacePayload(ws), nil
}

// --- Songs ---

func (s *Service) CreateSong(ctx context.Context, workspaceID string, input SongInput, userName string) (map[string]any, error) {
	if err := validateSongInput(input); err != nil {
		return nil, err
	}
	if workspaceID == "" {
		ws, err := s.store.GetDefaultWorkspace(ctx)
		if err != nil {
			return nil, err
		}
		workspaceID = ws.ID
	}

	song := store.Song{
		ID:          util.NewID("song"),
		WorkspaceID: workspaceID,
		Title:       strings.TrimSpace(input.Title),
		Author:      strings.TrimSpace(input.Author),
		Key:         normalizeKey(input.Key),
		Lyrics:      input.Lyrics,
		Language:    normalizeLanguage(input.Language),
		CreatedBy:   userName,
	}
	if err := s.store.InsertSong(ctx, song); err != nil {
		return nil, err
	}

	if s.git != nil {
		if err := s.git.EnsureSongRepo(song.ID, songContent(song), userName); err != nil {
			log.Printf("app: init song repo %s: %v", song.ID, err)
		}
	}
	s.indexSong(song)

	return songPayload(song), nil
}

func (s *Service) GetSong(ctx context.Context, songID string) (map[string]any, error) {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	return songPayload(song), nil
}

func (s *Service) ListSongs(ctx context.Context, workspaceID string) ([]map[string]any, error) {
	songs, err := s.store.ListSongs(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(songs))
	for _, song := range songs {
		items = append(items, songPayload(song))
	}
	return items, nil
}

func (s *Service) UpdateSong(ctx context.Context, songID string, input SongInput, userName string) (map[string]any, error) {
	if err := validateSongInput(input); err != nil {
		return nil, err
	}
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}

	song.Title = strings.TrimSpace(input.Title)
	song.Author = strings.TrimSpace(input.Author)
	song.Key = normalizeKey(input.Key)
	song.Lyrics = input.Lyrics
	song.Language = normalizeLanguage(input.Language)

	if err := s.store.UpdateSong(ctx, song); err != nil {
		return nil, err
	}

	if s.git != nil {
		if err := s.git.EnsureSongRepo(song.ID, songContent(song), userName); err != nil {
			log.Printf("app: init song repo %s: %v", song.ID, err)
		}
		if _, err := s.git.CommitContent(song.ID, songContent(song), userName, "Update song"); err != nil {
			log.Printf("app: commit song %s: %v", song.ID, err)
		}
	}
	s.indexSong(song)

	return songPayload(song), nil
}

func (s *Service) DeleteSong(ctx context.Context, songID string) error {
	if err := s.store.DeleteSong(ctx, songID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteSong(songID)
	}
	return nil
}

// SongHistory lists the song's committed versions, newest first.
func (s *Service) SongHistory(ctx context.Context, songID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetSong(ctx, songID); err != nil {
		return nil, err
	}
	if s.git == nil {
		return map[string]any{"versions": []map[string]any{}}, nil
	}
	commits, err := s.git.History(songID, limit)
	if err != nil {
		return nil, err
	}
	versions := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		versions = append(versions, map[string]any{
			"hash":      c.Hash,
			"message":   strings.TrimSpace(c.Message),
			"author":    c.Author,
			"createdAt": c.CreatedAt,
		})
	}
	return map[string]any{"versions": versions}, nil
}

// SongAtVersion returns the song's content at a historical commit.
func (s *Service) SongAtVersion(ctx context.Context, songID, hash string) (map[string]any, error) {
	if _, err := s.store.GetSong(ctx, songID); err != nil {
		return nil, err
	}
	if s.git == nil {
		return nil, notFoundError("Version history not available")
	}
	content, err := s.git.GetContentByHash(songID, hash)
	if err != nil {
		return nil, notFoundError("Version not found")
	}
	return map[string]any{
		"hash":     hash,
		"title":    content.Title,
		"author":   content.Author,
		"key":      content.Key,
		"language": content.Language,
		"lyrics":   content.Lyrics,
	}, nil
}

// TransposeSong returns a song's lyrics and key shifted by amount without
// touching stored state, for previewing a key change.
func (s *Service) TransposeSong(ctx context.Context, songID string, amount int) (map[string]any, error) {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	if amount < -11 || amount > 11 {
		return nil, validationError("transposition must be between -11 and 11", nil)
	}
	key, err := transpose.Key(song.Key, amount)
	if err != nil {
		key = song.Key
	}
	return map[string]any{
		"songId":        song.ID,
		"transposition": amount,
		"key":           key,
		"lyrics":        transpose.Lyrics(song.Lyrics, amount),
	}, nil
}

// --- Services and set lists ---

func (s *Service) CreateService(ctx context.Context, workspaceID string, input ServiceInput, userName string) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, validationError("name is required", nil)
	}
	if input.ServiceDate.IsZero() {
		return nil, validationError("serviceDate is required", nil)
	}
	if workspaceID == "" {
		ws, err := s.store.GetDefaultWorkspace(ctx)
		if err != nil {
			return nil, err
		}
		workspaceID = ws.ID
	}

	svc := store.Service{
		ID:          util.NewID("svc"),
		WorkspaceID: workspaceID,
		Name:        strings.TrimSpace(input.Name),
		ServiceDate: input.ServiceDate,
		CreatedBy:   userName,
	}
	if err := s.store.InsertService(ctx, svc); err != nil {
		return nil, err
	}
	return servicePayload(svc), nil
}

func (s *Service) GetService(ctx context.Context, serviceID string) (map[string]any, error) {
	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListSetList(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	payload := servicePayload(svc)
	payload["setList"] = setListPayload(entries)
	if s.registry != nil {
		if state, ok := s.registry.Snapshot(serviceID); ok {
			payload["live"] = map[string]any{
				"active":        true,
				"leaderPresent": state.LeaderConnectionID != "",
				"songIndex":     state.SongIndex,
				"songId":        state.SongID,
				"transposition": state.Transposition,
				"members":       state.MemberCount,
			}
		}
	}
	return payload, nil
}

func (s *Service) ListServices(ctx context.Context, workspaceID string) ([]map[string]any, error) {
	services, err := s.store.ListServices(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(services))
	for _, svc := range services {
		items = append(items, servicePayload(svc))
	}
	return items, nil
}

func (s *Service) DeleteService(ctx context.Context, serviceID string) error {
	return s.store.DeleteService(ctx, serviceID)
}

func (s *Service) AddSongToService(ctx context.Context, serviceID, songID string, transposition int) (map[string]any, error) {
	if _, err := s.store.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetSong(ctx, songID); err != nil {
		return nil, err
	}
	if err := s.store.AddSetListEntry(ctx, serviceID, songID, transposition); err != nil {
		return nil, err
	}
	entries, err := s.store.ListSetList(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"setList": setListPayload(entries)}, nil
}

func (s *Service) RemoveSongFromService(ctx context.Context, serviceID, songID string) (map[string]any, error) {
	if err := s.store.RemoveSetListEntry(ctx, serviceID, songID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListSetList(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"setList": setListPayload(entries)}, nil
}

func (s *Service) ReorderSetList(ctx context.Context, serviceID string, songIDs []string) (map[string]any, error) {
	if len(songIDs) == 0 {
		return nil, validationError("songIds is required", nil)
	}
	if err := s.store.ReorderSetList(ctx, serviceID, songIDs); err != nil {
		return nil, err
	}
	entries, err := s.store.ListSetList(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"setList": setListPayload(entries)}, nil
}

// SetServiceTransposition persists the chosen key for one set-list slot.
// Also called by the live session when the leader transposes mid-session.
func (s *Service) SetServiceTransposition(ctx context.Context, serviceID, songID string, transposition int) error {
	if transposition < -11 || transposition > 11 {
		return validationError("transposition must be between -11 and 11", nil)
	}
	return s.store.SetTransposition(ctx, serviceID, songID, transposition)
}

// --- Live session control ---

// ChangeLeader hands room leadership to another connected participant. The
// rbac gate lives at the HTTP layer; here we only require the participant
// to actually be in the room.
func (s *Service) ChangeLeader(ctx context.Context, serviceID, participantID string) (map[string]any, error) {
	if s.registry == nil {
		return nil, unavailableError(codeLiveUnavailable, "Live sessions not available")
	}
	if _, err := s.store.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	if !s.registry.ChangeLeader(serviceID, participantID) {
		return nil, conflictError(codeNotInRoom, "Participant is not connected to this session")
	}
	return map[string]any{"ok": true, "leaderId": participantID}, nil
}

// --- Search ---

func (s *Service) Search(ctx context.Context, text, workspaceID, language string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return map[string]any{"results": []any{}, "total": 0, "query": text}, nil
	}
	resp := s.search.Search(search.Query{
		Text:              text,
		FilterWorkspaceID: workspaceID,
		FilterLanguage:    language,
		Limit:             limit,
		Offset:            offset,
	})
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
	}, nil
}

// --- Export ---

func (s *Service) Export(ctx context.Context, serviceID string, format export.Format, lyricsOnly bool) (*export.Result, error) {
	return s.exporter.Export(ctx, export.Request{
		ServiceID:  serviceID,
		Format:     format,
		LyricsOnly: lyricsOnly,
	})
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- Admin ---

func (s *Service) SetUserRole(ctx context.Context, userID, role string) (map[string]any, error) {
	if rbac.Normalize(role) != rbac.Role(role) {
		return nil, validationError("unknown role", nil)
	}
	if err := s.store.SetUserRole(ctx, userID, role); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"userId": user.ID, "role": user.Role}, nil
}

// --- helpers ---

func (s *Service) indexSong(song store.Song) {
	if s.search == nil {
		return
	}
	s.search.IndexSong(search.SongRecord{
		ID:          song.ID,
		Title:       song.Title,
		Author:      song.Author,
		Lyrics:      song.Lyrics,
		Key:         song.Key,
		Language:    song.Language,
		WorkspaceID: song.WorkspaceID,
	})
}

func validateSongInput(input SongInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return validationError("title is required", nil)
	}
	if key := normalizeKey(input.Key); key != "" {
		if _, err := transpose.Key(key, 0); err != nil {
			return validationError("unrecognized key", map[string]any{"key": input.Key})
		}
	}
	return nil
}

func songContent(song store.Song) gitrepo.Content {
	return gitrepo.Content{
		Title:    song.Title,
		Author:   song.Author,
		Key:      song.Key,
		Language: song.Language,
		Lyrics:   song.Lyrics,
	}
}

func songPayload(song store.Song) map[string]any {
	return map[string]any{
		"id":          song.ID,
		"workspaceId": song.WorkspaceID,
		"title":       song.Title,
		"author":      song.Author,
		"key":         song.Key,
		"language":    song.Language,
		"lyrics":      song.Lyrics,
		"createdBy":   song.CreatedBy,
		"createdAt":   song.CreatedAt,
		"updatedAt":   song.UpdatedAt,
	}
}

func servicePayload(svc store.Service) map[string]any {
	return map[string]any{
		"id":          svc.ID,
		"workspaceId": svc.WorkspaceID,
		"name":        svc.Name,
		"serviceDate": svc.ServiceDate,
		"createdBy":   svc.CreatedBy,
		"createdAt":   svc.CreatedAt,
	}
}

func setListPayload(entries []store.SetListEntry) []map[string]any {
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{
			"songId":        e.SongID,
			"position":      e.Position,
			"transposition": e.Transposition,
			"title":         e.Title,
			"author":        e.Author,
			"key":           e.Key,
		})
	}
	return items
}

func workspacePayload(ws store.Workspace) map[string]any {
	return map[string]any{
		"id":   ws.ID,
		"name": ws.Name,
		"slug": ws.Slug,
	}
}

func normalizeKey(key string) string {
	return strings.TrimSpace(key)
}

func normalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return "en"
	}
	return language
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// exportStore bridges the relational store to what the exporter needs.
type exportStore struct {
	store dataStore
}

func (e exportStore) GetServiceInfo(ctx context.Context, id string) (export.ServiceInfo, error) {
	svc, err := e.store.GetService(ctx, id)
	if err != nil {
		return export.ServiceInfo{}, err
	}
	return export.ServiceInfo{
		ID:          svc.ID,
		Name:        svc.Name,
		ServiceDate: svc.ServiceDate,
		WorkspaceID: svc.WorkspaceID,
	}, nil
}

func (e exportStore) GetWorkspaceInfo(ctx context.Context, id string) (export.WorkspaceInfo, error) {
	ws, err := e.store.GetWorkspace(ctx, id)
	if err != nil {
		return export.WorkspaceInfo{}, err
	}
	return export.WorkspaceInfo{ID: ws.ID, Name: ws.Name}, nil
}

func (e exportStore) ListSetListSongs(ctx context.Context, serviceID string) ([]export.SetListSongInfo, error) {
	entries, err := e.store.ListSetList(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	songs := make([]export.SetListSongInfo, 0, len(entries))
	for _, entry := range entries {
		song, err := e.store.GetSong(ctx, entry.SongID)
		if err != nil {
			return nil, err
		}
		songs = append(songs, export.SetListSongInfo{
			SongID:        song.ID,
			Title:         song.Title,
			Author:        song.Author,
			Key:           song.Key,
			Lyrics:        song.Lyrics,
			Transposition: entry.Transposition,
		})
	}
	return songs, nil
}
