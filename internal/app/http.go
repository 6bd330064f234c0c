package app

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dimaswi/administrasi-sub003/internal/auth"
	"github.com/dimaswi/administrasi-sub003/internal/authpw"
	"github.com/dimaswi/administrasi-sub003/internal/rbac"
	"github.com/dimaswi/administrasi-sub003/internal/search"
	"github.com/dimaswi/administrasi-sub003/internal/store"
	"github.com/dimaswi/administrasi-sub003/internal/util"
)

const maxUploadBytes = 20 << 20

type Server struct {
	service    *Service
	corsOrigin string
}

func NewServer(service *Service, corsOrigin string) *Server {
	return &Server{service: service, corsOrigin: corsOrigin}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := s.service.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "database unreachable", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("/api/auth/", s.handleAuth)
	mux.HandleFunc("/api/session/", s.handleSession)
	mux.HandleFunc("/api/numbering-configs", s.handleNumberingConfigs)
	mux.HandleFunc("/api/templates", s.handleTemplates)
	mux.HandleFunc("/api/templates/", s.handleTemplate)
	mux.HandleFunc("/api/letters", s.handleLetters)
	mux.HandleFunc("/api/letters/", s.handleLetter)
	mux.HandleFunc("/api/signatories/", s.handleSignatory)
	mux.HandleFunc("/api/incoming", s.handleIncomingCollection)
	mux.HandleFunc("/api/incoming/", s.handleIncoming)
	mux.HandleFunc("/api/archive", s.handleArchive)
	mux.HandleFunc("/api/archive/documents", s.handleArchiveDocument)
	mux.HandleFunc("/api/search", s.handleSearch)

	return s.withMiddleware(mux)
}

// ---- auth ----

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse(session))

	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup":
		// Accounts are provisioned by admins, not self-registered.
		if _, ok := s.requireAction(w, r, rbac.ActionAdmin); !ok {
			return
		}
		var body struct {
			Email       string `json:"email"`
			Password    string `json:"password"`
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		user, err := s.service.Accounts().CreateAccount(r.Context(), authpw.CreateAccountRequest{
			Email:       body.Email,
			Password:    body.Password,
			DisplayName: body.DisplayName,
			Role:        body.Role,
		})
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusCreated, userResponse(user))

	case r.Method == http.MethodGet && r.URL.Path == "/api/auth/me":
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"userId":   session.UserID,
			"userName": session.UserName,
			"role":     session.Role,
		})

	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/password":
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		var body struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if err := s.service.Accounts().ChangePassword(r.Context(), session.UserID, body.CurrentPassword, body.NewPassword); err != nil {
			if errors.Is(err, authpw.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password is wrong", nil)
				return
			}
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "INVALID_REFRESH", "refresh token is invalid or expired", nil)
				return
			}
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse(session))

	case r.Method == http.MethodPost && r.URL.Path == "/api/session/logout":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	}
}

// ---- numbering configs ----

func (s *Server) handleNumberingConfigs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		configs, err := s.service.ListNumberingConfigs(r.Context())
		if err != nil {
			mapError(w, err)
			return
		}
		views := make([]map[string]any, 0, len(configs))
		for _, c := range configs {
			views = append(views, numberingResponse(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"configs": views})

	case http.MethodPost:
		if _, ok := s.requireAction(w, r, rbac.ActionAdmin); !ok {
			return
		}
		var body NumberingConfigInput
		if !decodeBody(w, r, &body) {
			return
		}
		cfg, err := s.service.CreateNumberingConfig(r.Context(), body)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, numberingResponse(cfg))

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or POST", nil)
	}
}

// ---- templates ----

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		includeDeleted := r.URL.Query().Get("includeDeleted") == "true"
		templates, err := s.service.ListTemplates(r.Context(), includeDeleted)
		if err != nil {
			mapError(w, err)
			return
		}
		views := make([]map[string]any, 0, len(templates))
		for _, tpl := range templates {
			views = append(views, templateResponse(tpl))
		}
		writeJSON(w, http.StatusOK, map[string]any{"templates": views})

	case http.MethodPost:
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		var body TemplateInput
		if !decodeBody(w, r, &body) {
			return
		}
		tpl, err := s.service.CreateTemplate(r.Context(), body, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, templateResponse(tpl))

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or POST", nil)
	}
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/templates/"))
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
		return
	}
	templateID := parts[0]

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		tpl, err := s.service.GetTemplate(r.Context(), templateID)
		if err != nil {
			mapError(w, err)
			return
		}
		view := templateResponse(tpl)
		view["settings"] = json.RawMessage(tpl.Settings)
		writeJSON(w, http.StatusOK, view)

	case r.Method == http.MethodPut && len(parts) == 1:
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		var body TemplateInput
		if !decodeBody(w, r, &body) {
			return
		}
		tpl, err := s.service.UpdateTemplate(r.Context(), templateID, body, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templateResponse(tpl))

	case r.Method == http.MethodDelete && len(parts) == 1:
		if _, ok := s.requireAction(w, r, rbac.ActionAdmin); !ok {
			return
		}
		if err := s.service.DeleteTemplate(r.Context(), templateID); err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "history":
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		history, err := s.service.TemplateHistory(r.Context(), templateID, limit)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})

	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "history":
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		settings, err := s.service.TemplateSettingsAt(r.Context(), templateID, parts[2])
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settings": settings})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	}
}

// ---- outgoing letters ----

func (s *Server) handleLetters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		letters, err := s.service.ListLetters(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			mapError(w, err)
			return
		}
		views := make([]map[string]any, 0, len(letters))
		for _, item := range letters {
			views = append(views, letterResponse(item))
		}
		writeJSON(w, http.StatusOK, map[string]any{"letters": views})

	case http.MethodPost:
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		var body DraftInput
		if !decodeBody(w, r, &body) {
			return
		}
		item, err := s.service.CreateDraft(r.Context(), body, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, letterResponse(item))

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or POST", nil)
	}
}

func (s *Server) handleLetter(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/letters/"))
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
		return
	}
	letterID := parts[0]

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		detail, err := s.service.GetLetter(r.Context(), letterID)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)

	case r.Method == http.MethodPut && len(parts) == 1:
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		var body DraftInput
		if !decodeBody(w, r, &body) {
			return
		}
		item, err := s.service.UpdateDraft(r.Context(), letterID, body, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, letterResponse(item))

	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "revisions":
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		revisions, err := s.service.ListRevisions(r.Context(), letterID)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})

	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "revisions":
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		version, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "no such revision", nil)
			return
		}
		revision, err := s.service.GetRevision(r.Context(), letterID, version)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, revision)

	case r.Method == http.MethodPost && len(parts) == 2 && (parts[1] == "submit" || parts[1] == "resubmit"):
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		var body struct {
			Notes string `json:"notes"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		item, err := s.service.SubmitLetter(r.Context(), letterID, body.Notes, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, letterResponse(item))

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "request-changes":
		session, ok := s.requireAction(w, r, rbac.ActionApprove)
		if !ok {
			return
		}
		var body struct {
			RequestedChanges string `json:"requestedChanges"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		item, err := s.service.RequestChanges(r.Context(), letterID, body.RequestedChanges, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, letterResponse(item))

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "send":
		if _, ok := s.requireAction(w, r, rbac.ActionWrite); !ok {
			return
		}
		item, err := s.service.SendLetter(r.Context(), letterID)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, letterResponse(item))

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "archive":
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		item, err := s.service.ArchiveLetter(r.Context(), letterID, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, letterResponse(item))

	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "export" && parts[2] == "pdf":
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		result, err := s.service.ExportLetterPDF(r.Context(), letterID)
		if err != nil {
			mapError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	}
}

// ---- signatories ----

func (s *Server) handleSignatory(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/signatories/"))
	if len(parts) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
		return
	}
	session, ok := s.requireAction(w, r, rbac.ActionApprove)
	if !ok {
		return
	}
	signatoryID := parts[0]

	switch parts[1] {
	case "approve":
		item, err := s.service.ApproveSignatory(r.Context(), signatoryID, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, letterResponse(item))

	case "reject":
		var body struct {
			Notes string `json:"notes"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		item, err := s.service.RejectSignatory(r.Context(), signatoryID, body.Notes, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, letterResponse(item))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	}
}

// ---- incoming letters ----

func (s *Server) handleIncomingCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		letters, err := s.service.ListIncomingLetters(r.Context())
		if err != nil {
			mapError(w, err)
			return
		}
		views := make([]map[string]any, 0, len(letters))
		for _, item := range letters {
			views = append(views, incomingResponse(item))
		}
		writeJSON(w, http.StatusOK, map[string]any{"incoming": views})

	case http.MethodPost:
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		var body IncomingInput
		if !decodeBody(w, r, &body) {
			return
		}
		item, err := s.service.CreateIncomingLetter(r.Context(), body, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, incomingResponse(item))

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or POST", nil)
	}
}

func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/incoming/"))
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
		return
	}
	incomingID := parts[0]

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
			return
		}
		detail, err := s.service.GetIncomingLetter(r.Context(), incomingID)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "scan":
		if _, ok := s.requireAction(w, r, rbac.ActionWrite); !ok {
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "read upload body", nil)
			return
		}
		if len(data) > maxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "upload exceeds 20MB", nil)
			return
		}
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		path, err := s.service.AttachIncomingScan(r.Context(), incomingID, contentType, data)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"scanPath": path})

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "dispositions":
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		var body DispositionInput
		if !decodeBody(w, r, &body) {
			return
		}
		item, err := s.service.CreateDisposition(r.Context(), incomingID, body, session)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":          item.ID,
			"assignedTo":  item.AssignedTo,
			"instruction": item.Instruction,
			"note":        item.Note,
		})

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "archive":
		session, ok := s.requireAction(w, r, rbac.ActionWrite)
		if !ok {
			return
		}
		if err := s.service.ArchiveIncomingLetter(r.Context(), incomingID, session); err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	}
}

// ---- archive ----

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.service.ListArchive(r.Context(), r.URL.Query().Get("kind"), limit)
	if err != nil {
		mapError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		views = append(views, map[string]any{
			"id":               entry.ID,
			"kind":             entry.Kind,
			"outgoingLetterId": entry.OutgoingLetterID,
			"incomingLetterId": entry.IncomingLetterID,
			"documentPath":     entry.DocumentPath,
			"title":            entry.Title,
			"archivedBy":       entry.ArchivedBy,
			"archivedAt":       entry.ArchivedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": views})
}

func (s *Server) handleArchiveDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST", nil)
		return
	}
	session, ok := s.requireAction(w, r, rbac.ActionWrite)
	if !ok {
		return
	}
	title := r.URL.Query().Get("title")
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "read upload body", nil)
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "upload exceeds 20MB", nil)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	entry, err := s.service.ArchiveDocument(r.Context(), title, contentType, data, session)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"kind":         entry.Kind,
		"documentPath": entry.DocumentPath,
		"title":        entry.Title,
	})
}

// ---- search ----

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	if _, ok := s.requireAction(w, r, rbac.ActionRead); !ok {
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	response := s.service.Search(search.Query{
		Text:         query.Get("q"),
		FilterType:   search.ResultType(query.Get("type")),
		FilterStatus: query.Get("status"),
		Limit:        limit,
		Offset:       offset,
	})
	writeJSON(w, http.StatusOK, response)
}

// ---- session helpers ----

func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired", nil)
			return Session{}, false
		}
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
		return Session{}, false
	}
	return session, true
}

func (s *Server) requireAction(w http.ResponseWriter, r *http.Request, action rbac.Action) (Session, bool) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return Session{}, false
	}
	if !s.service.Can(session.Role, action) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "role does not allow this action", nil)
		return Session{}, false
	}
	return session, true
}

// ---- middleware ----

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := util.NewID("req")
		w.Header().Set("X-Request-ID", requestID)
		s.setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)

		entry, _ := json.Marshal(map[string]any{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		log.Println(string(entry))
	})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
}

// ---- response shaping ----

func sessionResponse(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt,
	}
}

func userResponse(user store.User) map[string]any {
	return map[string]any{
		"id":          user.ID,
		"email":       user.Email,
		"displayName": user.DisplayName,
		"role":        user.Role,
		"isActive":    user.IsActive,
	}
}

func numberingResponse(cfg store.NumberingConfig) map[string]any {
	return map[string]any{
		"id":           cfg.ID,
		"code":         cfg.Code,
		"format":       cfg.Format,
		"counterReset": cfg.CounterReset,
		"lastNumber":   cfg.LastNumber,
		"padding":      cfg.Padding,
	}
}

func templateResponse(tpl store.DocumentTemplate) map[string]any {
	return map[string]any{
		"id":               tpl.ID,
		"name":             tpl.Name,
		"numberingGroupId": tpl.NumberingGroupID,
		"deletedAt":        tpl.DeletedAt,
		"createdBy":        tpl.CreatedBy,
		"createdAt":        tpl.CreatedAt,
		"updatedAt":        tpl.UpdatedAt,
	}
}

func letterResponse(item store.OutgoingLetter) map[string]any {
	return map[string]any{
		"id":             item.ID,
		"templateId":     item.TemplateID,
		"letterNumber":   item.LetterNumber,
		"subject":        item.Subject,
		"status":         item.Status,
		"currentVersion": item.CurrentVersion,
		"createdBy":      item.CreatedBy,
		"createdAt":      item.CreatedAt,
		"updatedAt":      item.UpdatedAt,
	}
}

func incomingResponse(item store.IncomingLetter) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"number":     item.Number,
		"sender":     item.Sender,
		"subject":    item.Subject,
		"scanPath":   item.ScanPath,
		"receivedBy": item.ReceivedBy,
		"receivedAt": item.ReceivedAt,
	}
}

// ---- wire helpers ----

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"error":   message,
		"details": details,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(w http.ResponseWriter, err error) {
	var domain *DomainError
	switch {
	case errors.As(err, &domain):
		writeError(w, domain.Status, domain.Code, domain.Message, domain.Details)
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, store.ErrStateConflict):
		writeError(w, http.StatusConflict, "STATE_CONFLICT", "the letter is not in a state that allows this action", nil)
	case errors.Is(err, store.ErrOutOfOrder):
		writeError(w, http.StatusConflict, "OUT_OF_ORDER", "an earlier signatory has not approved yet", nil)
	case errors.Is(err, store.ErrWrongActor):
		writeError(w, http.StatusForbidden, "WRONG_ACTOR", "this signatory slot belongs to a different user", nil)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
