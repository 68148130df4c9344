package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shilo-maker/soluflow-sub001/internal/auth"
	"github.com/shilo-maker/soluflow-sub001/internal/authpw"
	"github.com/shilo-maker/soluflow-sub001/internal/export"
	"github.com/shilo-maker/soluflow-sub001/internal/rbac"
	"github.com/shilo-maker/soluflow-sub001/internal/session"
	"github.com/shilo-maker/soluflow-sub001/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) forbid(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "refreshToken is required", nil)
			return
		}
		next, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			if errors.Is(err, session.ErrTokenNotFound) || errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(next))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		current, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      current.UserName,
			"userId":        current.UserID,
			"role":          current.Role,
		})
		return
	}

	// Everything below requires a session.
	current, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), current, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if !s.service.Can(current.Role, rbac.ActionRead) {
		s.forbid(w)
		return
	}

	switch parts[1] {
	case "workspaces":
		s.handleWorkspaces(w, r, current, parts)
	case "songs":
		s.handleSongs(w, r, current, parts)
	case "services":
		s.handleServices(w, r, current, parts)
	case "search":
		s.handleSearch(w, r, parts)
	case "admin":
		s.handleAdmin(w, r, current, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleWorkspaces(w http.ResponseWriter, r *http.Request, current Session, parts []string) {
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch r.Method {
	case http.MethodGet:
		items, err := s.service.ListWorkspaces(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workspaces": items})
	case http.MethodPost:
		if !s.service.Can(current.Role, rbac.ActionAdmin) {
			s.forbid(w)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ws, err := s.service.CreateWorkspace(r.Context(), body.Name)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ws)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleSongs(w http.ResponseWriter, r *http.Request, current Session, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		items, err := s.service.ListSongs(r.Context(), r.URL.Query().Get("workspace"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"songs": items})

	case len(parts) == 2 && r.Method == http.MethodPost:
		if !s.service.Can(current.Role, rbac.ActionEdit) {
			s.forbid(w)
			return
		}
		var body SongInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		song, err := s.service.CreateSong(r.Context(), r.URL.Query().Get("workspace"), body, current.UserName)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, song)

	case len(parts) == 3 && r.Method == http.MethodGet:
		song, err := s.service.GetSong(r.Context(), parts[2])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, song)

	case len(parts) == 3 && r.Method == http.MethodPut:
		if !s.service.Can(current.Role, rbac.ActionEdit) {
			s.forbid(w)
			return
		}
		var body SongInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		song, err := s.service.UpdateSong(r.Context(), parts[2], body, current.UserName)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, song)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if !s.service.Can(current.Role, rbac.ActionEdit) {
			s.forbid(w)
			return
		}
		if err := s.service.DeleteSong(r.Context(), parts[2]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 4 && parts[3] == "history" && r.Method == http.MethodGet:
		limit := intQuery(r, "limit", 50)
		history, err := s.service.SongHistory(r.Context(), parts[2], limit)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)

	case len(parts) == 5 && parts[3] == "versions" && r.Method == http.MethodGet:
		version, err := s.service.SongAtVersion(r.Context(), parts[2], parts[4])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, version)

	case len(parts) == 4 && parts[3] == "transpose" && r.Method == http.MethodGet:
		amount, err := strconv.Atoi(r.URL.Query().Get("amount"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "amount must be an integer", nil)
			return
		}
		preview, err := s.service.TransposeSong(r.Context(), parts[2], amount)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, preview)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request, current Session, parts []string) {
	plan := func() bool {
		if !s.service.Can(current.Role, rbac.ActionPlan) {
			s.forbid(w)
			return false
		}
		return true
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		items, err := s.service.ListServices(r.Context(), r.URL.Query().Get("workspace"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": items})

	case len(parts) == 2 && r.Method == http.MethodPost:
		if !plan() {
			return
		}
		var body ServiceInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		svc, err := s.service.CreateService(r.Context(), r.URL.Query().Get("workspace"), body, current.UserName)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, svc)

	case len(parts) == 3 && r.Method == http.MethodGet:
		svc, err := s.service.GetService(r.Context(), parts[2])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, svc)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if !plan() {
			return
		}
		if err := s.service.DeleteService(r.Context(), parts[2]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 4 && parts[3] == "songs" && r.Method == http.MethodPost:
		if !plan() {
			return
		}
		var body struct {
			SongID        string `json:"songId"`
			Transposition int    `json:"transposition"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.SongID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "songId is required", nil)
			return
		}
		setList, err := s.service.AddSongToService(r.Context(), parts[2], body.SongID, body.Transposition)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, setList)

	case len(parts) == 5 && parts[3] == "songs" && r.Method == http.MethodDelete:
		if !plan() {
			return
		}
		setList, err := s.service.RemoveSongFromService(r.Context(), parts[2], parts[4])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, setList)

	case len(parts) == 6 && parts[3] == "songs" && parts[5] == "transposition" && r.Method == http.MethodPut:
		if !plan() {
			return
		}
		var body struct {
			Transposition int `json:"transposition"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetServiceTransposition(r.Context(), parts[2], parts[4], body.Transposition); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 4 && parts[3] == "order" && r.Method == http.MethodPut:
		if !plan() {
			return
		}
		var body struct {
			SongIDs []string `json:"songIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		setList, err := s.service.ReorderSetList(r.Context(), parts[2], body.SongIDs)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, setList)

	case len(parts) == 4 && parts[3] == "export" && r.Method == http.MethodGet:
		s.handleExport(w, r, parts[2])

	case len(parts) == 4 && parts[3] == "leader" && r.Method == http.MethodPost:
		if !s.service.Can(current.Role, rbac.ActionLead) {
			s.forbid(w)
			return
		}
		var body struct {
			ParticipantID string `json:"participantId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.ParticipantID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "participantId is required", nil)
			return
		}
		result, err := s.service.ChangeLeader(r.Context(), parts[2], body.ParticipantID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, serviceID string) {
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatHTML
	}
	lyricsOnly := r.URL.Query().Get("lyricsOnly") == "1" || r.URL.Query().Get("lyricsOnly") == "true"

	result, err := s.service.Export(r.Context(), serviceID, format, lyricsOnly)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 2 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	q := r.URL.Query()
	result, err := s.service.Search(r.Context(),
		q.Get("q"),
		q.Get("workspace"),
		q.Get("language"),
		intQuery(r, "limit", 20),
		intQuery(r, "offset", 0),
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, current Session, parts []string) {
	if !s.service.Can(current.Role, rbac.ActionAdmin) {
		s.forbid(w)
		return
	}
	if len(parts) == 5 && parts[2] == "users" && parts[4] == "role" && r.Method == http.MethodPut {
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.SetUserRole(r.Context(), parts[3], body.Role)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// Auth handlers for email/password authentication

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	next, err := s.service.SignUp(r.Context(), body.Email, body.Password, body.DisplayName)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(next))
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	next, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(next))
}

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"token":        sess.Token,
		"refreshToken": sess.RefreshToken,
		"userId":       sess.UserID,
		"userName":     sess.UserName,
		"role":         sess.Role,
		"expiresAt":    sess.ExpiresAt,
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	current, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return current, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	}
	if errors.Is(err, authpw.ErrEmailTaken) {
		return http.StatusConflict, "EMAIL_EXISTS", "An account with this email already exists", nil
	}
	if errors.Is(err, authpw.ErrWeakPassword) {
		return http.StatusUnprocessableEntity, "WEAK_PASSWORD", "Password does not meet requirements", nil
	}
	if errors.Is(err, session.ErrTokenNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export renderer not available", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
