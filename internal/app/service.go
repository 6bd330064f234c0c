package app

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dimaswi/administrasi-sub003/internal/auth"
	"github.com/dimaswi/administrasi-sub003/internal/authpw"
	"github.com/dimaswi/administrasi-sub003/internal/config"
	"github.com/dimaswi/administrasi-sub003/internal/email"
	"github.com/dimaswi/administrasi-sub003/internal/export"
	"github.com/dimaswi/administrasi-sub003/internal/numbering"
	"github.com/dimaswi/administrasi-sub003/internal/rbac"
	"github.com/dimaswi/administrasi-sub003/internal/search"
	"github.com/dimaswi/administrasi-sub003/internal/store"
	"github.com/dimaswi/administrasi-sub003/internal/template"
	"github.com/dimaswi/administrasi-sub003/internal/templaterepo"
	"github.com/dimaswi/administrasi-sub003/internal/util"
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

type NumberingConfigInput struct {
	Code         string `json:"code"`
	Format       string `json:"format"`
	CounterReset string `json:"counterReset"`
	Padding      int    `json:"padding"`
}

type TemplateInput struct {
	Name             string          `json:"name"`
	NumberingGroupID string          `json:"numberingGroupId"`
	Settings         json.RawMessage `json:"settings"`
}

type DraftInput struct {
	TemplateID string            `json:"templateId"`
	Subject    string            `json:"subject"`
	Values     map[string]string `json:"values"`
}

type IncomingInput struct {
	Number     string    `json:"number"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type DispositionInput struct {
	AssignedTo  string `json:"assignedTo"`
	Instruction string `json:"instruction"`
	Note        string `json:"note"`
}

// dataStore is the slice of the Postgres store the service uses.
type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)

	InsertNumberingConfig(context.Context, store.NumberingConfig) error
	GetNumberingConfig(context.Context, string) (store.NumberingConfig, error)
	ListNumberingConfigs(context.Context) ([]store.NumberingConfig, error)

	InsertTemplate(context.Context, store.DocumentTemplate) error
	GetTemplate(context.Context, string) (store.DocumentTemplate, error)
	ListTemplates(context.Context, bool) ([]store.DocumentTemplate, error)
	UpdateTemplateSettings(context.Context, string, string, string) (bool, error)
	SoftDeleteTemplate(context.Context, string) (bool, error)
	TemplateLetterCount(context.Context, string) (int, error)

	InsertLetter(context.Context, store.OutgoingLetter) error
	GetLetter(context.Context, string) (store.OutgoingLetter, error)
	ListLetters(context.Context, string) ([]store.OutgoingLetter, error)
	UpdateDraftContent(context.Context, string, string, string, string) (bool, error)
	SetLetterPDFPath(context.Context, string, string) error
	ListSignatories(context.Context, string) ([]store.LetterSignatory, error)
	GetSignatory(context.Context, string) (store.LetterSignatory, error)
	ListRevisions(context.Context, string) ([]store.LetterRevision, error)
	GetRevision(context.Context, string, int) (store.LetterRevision, error)

	SubmitLetter(context.Context, string, []store.SignatorySlot, string, time.Time) (store.OutgoingLetter, error)
	ApproveSignatory(context.Context, string, string, string, time.Time) (store.OutgoingLetter, error)
	RejectSignatory(context.Context, string, string, string, time.Time) (store.OutgoingLetter, error)
	RequestChanges(context.Context, string, string, string) (store.OutgoingLetter, error)
	MarkLetterSent(context.Context, string) (bool, error)
	ArchiveLetter(context.Context, string, string) (store.OutgoingLetter, error)

	InsertIncomingLetter(context.Context, store.IncomingLetter) error
	GetIncomingLetter(context.Context, string) (store.IncomingLetter, error)
	ListIncomingLetters(context.Context) ([]store.IncomingLetter, error)
	UpdateIncomingScanPath(context.Context, string, string) (bool, error)
	InsertDisposition(context.Context, store.Disposition) error
	ListDispositions(context.Context, string) ([]store.Disposition, error)

	InsertArchiveEntry(context.Context, store.ArchiveEntry) error
	ListArchive(context.Context, string, int) ([]store.ArchiveEntry, error)
}

// RefreshStore holds refresh sessions; Redis in production with the
// Postgres table as fallback.
type RefreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type templateRepo interface {
	EnsureTemplateRepo(templateID string, settings []byte, author string) error
	CommitSettings(templateID string, settings []byte, author, message string) (templaterepo.CommitInfo, error)
	History(templateID string, limit int) ([]templaterepo.CommitInfo, error)
	GetSettingsByHash(templateID, hash string) ([]byte, error)
}

type letterExporter interface {
	ExportLetter(ctx context.Context, letterID string) (*export.Result, error)
}

type objectStore interface {
	Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
	PresignDownload(ctx context.Context, objectPath, filename string, expiry time.Duration) (string, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  RefreshStore
	accounts  *authpw.Service
	templates templateRepo
	exporter  letterExporter
	searcher  *search.Service
	mailer    *email.Service
	objects   objectStore
}

func New(cfg config.Config, dataStore dataStore, sessions RefreshStore, accounts *authpw.Service, templates templateRepo) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		accounts:  accounts,
		templates: templates,
	}
}

func (s *Service) WithSearch(searcher *search.Service) *Service {
	s.searcher = searcher
	return s
}

func (s *Service) WithExporter(exporter letterExporter) *Service {
	s.exporter = exporter
	return s
}

func (s *Service) WithMailer(mailer *email.Service) *Service {
	s.mailer = mailer
	return s
}

func (s *Service) WithObjects(objects objectStore) *Service {
	s.objects = objects
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Bootstrap seeds the initial admin account so a fresh install is usable.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.accounts == nil {
		return nil
	}
	if _, err := s.store.GetUserByEmail(ctx, "admin@surat.local"); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err := s.accounts.CreateAccount(ctx, authpw.CreateAccountRequest{
		Email:       "admin@surat.local",
		Password:    "admin-change-me",
		DisplayName: "Administrator",
		Role:        string(rbac.RoleAdmin),
	})
	if err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	log.Println("bootstrap: seeded admin@surat.local with default password")
	return nil
}

// ---- sessions ----

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.accounts.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session payload may carry only the user ID; reload the record.
	if user.DisplayName == "" {
		user, err = s.store.GetUserByID(ctx, user.ID)
		if err != nil {
			return Session{}, err
		}
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
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
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
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
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

func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
}

func (s *Service) Accounts() *authpw.Service {
	return s.accounts
}

// ---- numbering configs ----

func (s *Service) CreateNumberingConfig(ctx context.Context, input NumberingConfigInput) (store.NumberingConfig, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return store.NumberingConfig{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "code is required", nil)
	}
	reset := input.CounterReset
	if reset == "" {
		reset = string(numbering.ResetYearly)
	}
	policy, err := numbering.ParsePolicy(reset)
	if err != nil {
		return store.NumberingConfig{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	padding := input.Padding
	if padding <= 0 {
		padding = 3
	}

	cfg := store.NumberingConfig{
		ID:           util.NewID("num"),
		Code:         code,
		Format:       strings.TrimSpace(input.Format),
		CounterReset: string(policy),
		Padding:      padding,
	}
	if err := s.store.InsertNumberingConfig(ctx, cfg); err != nil {
		return store.NumberingConfig{}, err
	}
	return cfg, nil
}

func (s *Service) ListNumberingConfigs(ctx context.Context) ([]store.NumberingConfig, error) {
	return s.store.ListNumberingConfigs(ctx)
}

// ---- document templates ----

func (s *Service) CreateTemplate(ctx context.Context, input TemplateInput, actor Session) (store.DocumentTemplate, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.DocumentTemplate{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if _, err := s.store.GetNumberingConfig(ctx, input.NumberingGroupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.DocumentTemplate{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "numbering group does not exist", nil)
		}
		return store.DocumentTemplate{}, err
	}
	if _, err := template.ParseSettings(input.Settings); err != nil {
		return store.DocumentTemplate{}, domainError(http.StatusUnprocessableEntity, "INVALID_SETTINGS", err.Error(), nil)
	}

	tpl := store.DocumentTemplate{
		ID:               util.NewID("tpl"),
		Name:             name,
		NumberingGroupID: input.NumberingGroupID,
		Settings:         string(input.Settings),
		CreatedBy:        actor.UserID,
	}
	if err := s.store.InsertTemplate(ctx, tpl); err != nil {
		return store.DocumentTemplate{}, err
	}
	if err := s.templates.EnsureTemplateRepo(tpl.ID, input.Settings, actor.UserName); err != nil {
		return store.DocumentTemplate{}, err
	}
	return tpl, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, templateID string, input TemplateInput, actor Session) (store.DocumentTemplate, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.DocumentTemplate{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if _, err := template.ParseSettings(input.Settings); err != nil {
		return store.DocumentTemplate{}, domainError(http.StatusUnprocessableEntity, "INVALID_SETTINGS", err.Error(), nil)
	}

	updated, err := s.store.UpdateTemplateSettings(ctx, templateID, name, string(input.Settings))
	if err != nil {
		return store.DocumentTemplate{}, err
	}
	if !updated {
		tpl, err := s.store.GetTemplate(ctx, templateID)
		if err != nil {
			return store.DocumentTemplate{}, err
		}
		if tpl.DeletedAt != nil {
			return store.DocumentTemplate{}, domainError(http.StatusConflict, "TEMPLATE_DELETED", "Template has been deleted", nil)
		}
		return store.DocumentTemplate{}, sql.ErrNoRows
	}

	if _, err := s.templates.CommitSettings(templateID, input.Settings, actor.UserName, "Update template settings"); err != nil {
		log.Printf("templates: commit settings for %s: %v", templateID, err)
	}
	return s.store.GetTemplate(ctx, templateID)
}

// DeleteTemplate soft-deletes a template. Deletion is refused while
// letters reference it so their rendering pipeline stays intact.
func (s *Service) DeleteTemplate(ctx context.Context, templateID string) error {
	count, err := s.store.TemplateLetterCount(ctx, templateID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domainError(http.StatusConflict, "TEMPLATE_IN_USE",
			"Template is referenced by existing letters", map[string]any{"letterCount": count})
	}
	deleted, err := s.store.SoftDeleteTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if !deleted {
		if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
			return err
		}
		return domainError(http.StatusConflict, "TEMPLATE_DELETED", "Template already deleted", nil)
	}
	return nil
}

func (s *Service) ListTemplates(ctx context.Context, includeDeleted bool) ([]store.DocumentTemplate, error) {
	return s.store.ListTemplates(ctx, includeDeleted)
}

func (s *Service) GetTemplate(ctx context.Context, templateID string) (store.DocumentTemplate, error) {
	return s.store.GetTemplate(ctx, templateID)
}

func (s *Service) TemplateHistory(ctx context.Context, templateID string, limit int) ([]templaterepo.CommitInfo, error) {
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	return s.templates.History(templateID, limit)
}

func (s *Service) TemplateSettingsAt(ctx context.Context, templateID, hash string) (json.RawMessage, error) {
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	raw, err := s.templates.GetSettingsByHash(templateID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Settings revision not found", nil)
	}
	return raw, nil
}

// ---- outgoing letters ----

func (s *Service) CreateDraft(ctx context.Context, input DraftInput, actor Session) (store.OutgoingLetter, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return store.OutgoingLetter{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "subject is required", nil)
	}
	tpl, err := s.store.GetTemplate(ctx, input.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.OutgoingLetter{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "template does not exist", nil)
		}
		return store.OutgoingLetter{}, err
	}
	if tpl.DeletedAt != nil {
		return store.OutgoingLetter{}, domainError(http.StatusConflict, "TEMPLATE_DELETED", "Template has been deleted", nil)
	}

	rendered, valuesJSON, err := s.renderBody(tpl, input.Values)
	if err != nil {
		return store.OutgoingLetter{}, err
	}

	item := store.OutgoingLetter{
		ID:             util.NewID("ltr"),
		TemplateID:     tpl.ID,
		Subject:        subject,
		Status:         "draft",
		VariableValues: valuesJSON,
		RenderedHTML:   rendered,
		CurrentVersion: 1,
		CreatedBy:      actor.UserID,
	}
	if err := s.store.InsertLetter(ctx, item); err != nil {
		return store.OutgoingLetter{}, err
	}
	return item, nil
}

func (s *Service) UpdateDraft(ctx context.Context, letterID string, input DraftInput, actor Session) (store.OutgoingLetter, error) {
	item, err := s.store.GetLetter(ctx, letterID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	if item.CreatedBy != actor.UserID && rbac.Normalize(actor.Role) != rbac.RoleAdmin {
		return store.OutgoingLetter{}, domainError(http.StatusForbidden, "FORBIDDEN", "Only the author may edit a draft", nil)
	}

	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		subject = item.Subject
	}
	tpl, err := s.store.GetTemplate(ctx, item.TemplateID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	rendered, valuesJSON, err := s.renderBody(tpl, input.Values)
	if err != nil {
		return store.OutgoingLetter{}, err
	}

	updated, err := s.store.UpdateDraftContent(ctx, letterID, subject, valuesJSON, rendered)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	if !updated {
		return store.OutgoingLetter{}, domainError(http.StatusConflict, "STATE_CONFLICT", "Only drafts can be edited", nil)
	}
	return s.store.GetLetter(ctx, letterID)
}

func (s *Service) renderBody(tpl store.DocumentTemplate, values map[string]string) (rendered, valuesJSON string, err error) {
	settings, err := template.ParseSettings([]byte(tpl.Settings))
	if err != nil {
		return "", "", fmt.Errorf("parse stored settings: %w", err)
	}
	if values == nil {
		values = map[string]string{}
	}
	if err := settings.ValidateValues(values); err != nil {
		return "", "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return "", "", fmt.Errorf("marshal values: %w", err)
	}
	return settings.Render(values), string(payload), nil
}

func (s *Service) GetLetter(ctx context.Context, letterID string) (map[string]any, error) {
	item, err := s.store.GetLetter(ctx, letterID)
	if err != nil {
		return nil, err
	}
	signatories, err := s.store.ListSignatories(ctx, letterID)
	if err != nil {
		return nil, err
	}
	revisions, err := s.store.ListRevisions(ctx, letterID)
	if err != nil {
		return nil, err
	}

	sigViews := make([]map[string]any, 0, len(signatories))
	for _, sig := range signatories {
		view := map[string]any{
			"id":        sig.ID,
			"userId":    sig.UserID,
			"signOrder": sig.SignOrder,
			"status":    sig.Status,
			"notes":     sig.Notes,
			"signedAt":  sig.SignedAt,
		}
		if user, err := s.store.GetUserByID(ctx, sig.UserID); err == nil {
			view["userName"] = user.DisplayName
		}
		sigViews = append(sigViews, view)
	}

	revViews := make([]map[string]any, 0, len(revisions))
	for _, rev := range revisions {
		revViews = append(revViews, map[string]any{
			"version":          rev.Version,
			"revisionNotes":    rev.RevisionNotes,
			"requestedChanges": rev.RequestedChanges,
			"createdBy":        rev.CreatedBy,
			"createdAt":        rev.CreatedAt,
		})
	}

	return map[string]any{
		"id":             item.ID,
		"templateId":     item.TemplateID,
		"letterNumber":   item.LetterNumber,
		"subject":        item.Subject,
		"status":         item.Status,
		"renderedHtml":   item.RenderedHTML,
		"pdfPath":        item.PDFPath,
		"currentVersion": item.CurrentVersion,
		"createdBy":      item.CreatedBy,
		"createdAt":      item.CreatedAt,
		"updatedAt":      item.UpdatedAt,
		"signatories":    sigViews,
		"revisions":      revViews,
	}, nil
}

func (s *Service) ListLetters(ctx context.Context, status string) ([]store.OutgoingLetter, error) {
	return s.store.ListLetters(ctx, status)
}

// ListRevisions returns the full snapshots of every revision cycle.
func (s *Service) ListRevisions(ctx context.Context, letterID string) ([]map[string]any, error) {
	if _, err := s.store.GetLetter(ctx, letterID); err != nil {
		return nil, err
	}
	revisions, err := s.store.ListRevisions(ctx, letterID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(revisions))
	for _, rev := range revisions {
		views = append(views, revisionView(rev))
	}
	return views, nil
}

// GetRevision returns one immutable snapshot by version.
func (s *Service) GetRevision(ctx context.Context, letterID string, version int) (map[string]any, error) {
	rev, err := s.store.GetRevision(ctx, letterID, version)
	if err != nil {
		return nil, err
	}
	return revisionView(rev), nil
}

func revisionView(rev store.LetterRevision) map[string]any {
	return map[string]any{
		"version":          rev.Version,
		"variableValues":   json.RawMessage(rev.VariableValues),
		"renderedHtml":     rev.RenderedHTML,
		"pdfPath":          rev.PDFPath,
		"revisionNotes":    rev.RevisionNotes,
		"requestedChanges": rev.RequestedChanges,
		"createdBy":        rev.CreatedBy,
		"createdAt":        rev.CreatedAt,
	}
}

// SubmitLetter materializes the template's signature slots into the
// signatory queue and allocates the letter number, then notifies the
// signatories who can act first.
func (s *Service) SubmitLetter(ctx context.Context, letterID, notes string, actor Session) (store.OutgoingLetter, error) {
	item, err := s.store.GetLetter(ctx, letterID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	if item.CreatedBy != actor.UserID && rbac.Normalize(actor.Role) != rbac.RoleAdmin {
		return store.OutgoingLetter{}, domainError(http.StatusForbidden, "FORBIDDEN", "Only the author may submit a draft", nil)
	}
	tpl, err := s.store.GetTemplate(ctx, item.TemplateID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	settings, err := template.ParseSettings([]byte(tpl.Settings))
	if err != nil {
		return store.OutgoingLetter{}, fmt.Errorf("parse stored settings: %w", err)
	}
	if len(settings.SignatureSlots) == 0 {
		return store.OutgoingLetter{}, domainError(http.StatusUnprocessableEntity, "NO_SIGNATORIES", "Template declares no signature slots", nil)
	}

	slots := make([]store.SignatorySlot, 0, len(settings.SignatureSlots))
	for _, slot := range settings.SignatureSlots {
		if _, err := s.store.GetUserByID(ctx, slot.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.OutgoingLetter{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
					fmt.Sprintf("signature slot user %s does not exist", slot.UserID), nil)
			}
			return store.OutgoingLetter{}, err
		}
		slots = append(slots, store.SignatorySlot{
			ID:        util.NewID("sig"),
			UserID:    slot.UserID,
			SignOrder: slot.SignOrder,
		})
	}

	submitted, err := s.store.SubmitLetter(ctx, letterID, slots, notes, time.Now())
	if err != nil {
		return store.OutgoingLetter{}, err
	}

	s.indexLetter(submitted)
	s.notifyFirstSignatories(ctx, submitted, slots)
	return submitted, nil
}

// notifyFirstSignatories emails the signatories who are immediately
// actionable: everyone signing in parallel plus the lowest sequential order.
func (s *Service) notifyFirstSignatories(ctx context.Context, item store.OutgoingLetter, slots []store.SignatorySlot) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	lowest := 0
	for _, slot := range slots {
		if slot.SignOrder > 0 && (lowest == 0 || slot.SignOrder < lowest) {
			lowest = slot.SignOrder
		}
	}
	for _, slot := range slots {
		if slot.SignOrder != 0 && slot.SignOrder != lowest {
			continue
		}
		user, err := s.store.GetUserByID(ctx, slot.UserID)
		if err != nil {
			continue
		}
		if err := s.mailer.SendSignatureRequest(user.Email, email.SignatureRequestData{
			SignerName:   user.DisplayName,
			LetterNumber: item.LetterNumber,
			Subject:      item.Subject,
		}); err != nil {
			log.Printf("email: signature request to %s: %v", user.Email, err)
		}
	}
}

func (s *Service) ApproveSignatory(ctx context.Context, signatoryID string, actor Session) (store.OutgoingLetter, error) {
	target, err := s.store.GetSignatory(ctx, signatoryID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	current, err := s.store.GetLetter(ctx, target.LetterID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}

	// The hash pins the approval to the exact content that was signed.
	sum := sha256.Sum256([]byte(current.RenderedHTML))
	docHash := hex.EncodeToString(sum[:])

	item, err := s.store.ApproveSignatory(ctx, signatoryID, actor.UserID, docHash, time.Now())
	if err != nil {
		return store.OutgoingLetter{}, err
	}

	s.indexLetter(item)
	s.notifyDecision(ctx, item, actor, "approved", "")
	if item.Status == "partially_signed" || item.Status == "pending_approval" {
		s.notifyNextSignatory(ctx, item)
	}
	return item, nil
}

func (s *Service) RejectSignatory(ctx context.Context, signatoryID, notes string, actor Session) (store.OutgoingLetter, error) {
	if strings.TrimSpace(notes) == "" {
		return store.OutgoingLetter{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rejection notes are required", nil)
	}
	item, err := s.store.RejectSignatory(ctx, signatoryID, actor.UserID, notes, time.Now())
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	s.indexLetter(item)
	s.notifyDecision(ctx, item, actor, "rejected", notes)
	return item, nil
}

func (s *Service) notifyDecision(ctx context.Context, item store.OutgoingLetter, actor Session, decision, notes string) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	author, err := s.store.GetUserByID(ctx, item.CreatedBy)
	if err != nil {
		return
	}
	if err := s.mailer.SendDecisionNotice(author.Email, email.DecisionData{
		AuthorName:   author.DisplayName,
		SignerName:   actor.UserName,
		LetterNumber: item.LetterNumber,
		Subject:      item.Subject,
		Decision:     decision,
		Notes:        notes,
	}); err != nil {
		log.Printf("email: decision notice to %s: %v", author.Email, err)
	}
}

func (s *Service) notifyNextSignatory(ctx context.Context, item store.OutgoingLetter) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	queue, err := s.store.ListSignatories(ctx, item.ID)
	if err != nil {
		return
	}
	next := 0
	for _, sig := range queue {
		if sig.Status != "pending" || sig.SignOrder <= 0 {
			continue
		}
		if next == 0 || sig.SignOrder < next {
			next = sig.SignOrder
		}
	}
	for _, sig := range queue {
		if sig.Status != "pending" || sig.SignOrder != next || next == 0 {
			continue
		}
		user, err := s.store.GetUserByID(ctx, sig.UserID)
		if err != nil {
			continue
		}
		if err := s.mailer.SendSignatureRequest(user.Email, email.SignatureRequestData{
			SignerName:   user.DisplayName,
			LetterNumber: item.LetterNumber,
			Subject:      item.Subject,
		}); err != nil {
			log.Printf("email: signature request to %s: %v", user.Email, err)
		}
	}
}

func (s *Service) RequestChanges(ctx context.Context, letterID, requestedChanges string, actor Session) (store.OutgoingLetter, error) {
	if strings.TrimSpace(requestedChanges) == "" {
		return store.OutgoingLetter{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "requested changes are required", nil)
	}
	item, err := s.store.RequestChanges(ctx, letterID, requestedChanges, actor.UserID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	s.indexLetter(item)
	return item, nil
}

func (s *Service) SendLetter(ctx context.Context, letterID string) (store.OutgoingLetter, error) {
	sent, err := s.store.MarkLetterSent(ctx, letterID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	if !sent {
		if _, err := s.store.GetLetter(ctx, letterID); err != nil {
			return store.OutgoingLetter{}, err
		}
		return store.OutgoingLetter{}, domainError(http.StatusConflict, "STATE_CONFLICT", "Only fully signed letters can be sent", nil)
	}
	item, err := s.store.GetLetter(ctx, letterID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	s.indexLetter(item)
	return item, nil
}

func (s *Service) ArchiveLetter(ctx context.Context, letterID string, actor Session) (store.OutgoingLetter, error) {
	item, err := s.store.ArchiveLetter(ctx, letterID, actor.UserID)
	if err != nil {
		return store.OutgoingLetter{}, err
	}
	s.indexLetter(item)
	return item, nil
}

// ExportLetterPDF renders the letter to PDF and, when object storage is
// configured, uploads it and records the storage path.
func (s *Service) ExportLetterPDF(ctx context.Context, letterID string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not configured", nil)
	}
	item, err := s.store.GetLetter(ctx, letterID)
	if err != nil {
		return nil, err
	}

	result, err := s.exporter.ExportLetter(ctx, letterID)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF renderer is not installed", nil)
		}
		return nil, err
	}

	if s.objects != nil {
		objectPath := fmt.Sprintf("letters/%s/v%d.pdf", item.ID, item.CurrentVersion)
		if stored, err := s.objects.Put(ctx, objectPath, result.MimeType, result.Data); err != nil {
			log.Printf("storage: upload letter pdf %s: %v", objectPath, err)
		} else if err := s.store.SetLetterPDFPath(ctx, item.ID, stored); err != nil {
			log.Printf("storage: record letter pdf path %s: %v", stored, err)
		}
	}
	return result, nil
}

func (s *Service) indexLetter(item store.OutgoingLetter) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexLetter(search.LetterRecord{
		ID:           item.ID,
		LetterNumber: item.LetterNumber,
		Subject:      item.Subject,
		Body:         item.RenderedHTML,
		Status:       item.Status,
	})
}

// ---- incoming letters and dispositions ----

func (s *Service) CreateIncomingLetter(ctx context.Context, input IncomingInput, actor Session) (store.IncomingLetter, error) {
	if strings.TrimSpace(input.Number) == "" || strings.TrimSpace(input.Sender) == "" {
		return store.IncomingLetter{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "number and sender are required", nil)
	}
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	item := store.IncomingLetter{
		ID:         util.NewID("inc"),
		Number:     strings.TrimSpace(input.Number),
		Sender:     strings.TrimSpace(input.Sender),
		Subject:    strings.TrimSpace(input.Subject),
		ReceivedBy: actor.UserID,
		ReceivedAt: receivedAt,
	}
	if err := s.store.InsertIncomingLetter(ctx, item); err != nil {
		return store.IncomingLetter{}, err
	}
	if s.searcher != nil {
		s.searcher.IndexIncoming(search.IncomingRecord{
			ID:      item.ID,
			Number:  item.Number,
			Sender:  item.Sender,
			Subject: item.Subject,
		})
	}
	return item, nil
}

// AttachIncomingScan uploads a scanned document to object storage and
// links it to the incoming letter.
func (s *Service) AttachIncomingScan(ctx context.Context, incomingID, contentType string, data []byte) (string, error) {
	if s.objects == nil {
		return "", domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured", nil)
	}
	if len(data) == 0 {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "scan body is empty", nil)
	}
	if _, err := s.store.GetIncomingLetter(ctx, incomingID); err != nil {
		return "", err
	}

	objectPath := fmt.Sprintf("incoming/%s/scan", incomingID)
	stored, err := s.objects.Put(ctx, objectPath, contentType, data)
	if err != nil {
		return "", err
	}
	if _, err := s.store.UpdateIncomingScanPath(ctx, incomingID, stored); err != nil {
		return "", err
	}
	return stored, nil
}

func (s *Service) GetIncomingLetter(ctx context.Context, incomingID string) (map[string]any, error) {
	item, err := s.store.GetIncomingLetter(ctx, incomingID)
	if err != nil {
		return nil, err
	}
	dispositions, err := s.store.ListDispositions(ctx, incomingID)
	if err != nil {
		return nil, err
	}

	dispViews := make([]map[string]any, 0, len(dispositions))
	for _, d := range dispositions {
		view := map[string]any{
			"id":          d.ID,
			"assignedTo":  d.AssignedTo,
			"instruction": d.Instruction,
			"note":        d.Note,
			"createdBy":   d.CreatedBy,
			"createdAt":   d.CreatedAt,
		}
		if user, err := s.store.GetUserByID(ctx, d.AssignedTo); err == nil {
			view["assignedToName"] = user.DisplayName
		}
		dispViews = append(dispViews, view)
	}

	scanURL := ""
	if s.objects != nil && item.ScanPath != "" {
		if url, err := s.objects.PresignDownload(ctx, item.ScanPath, "", 15*time.Minute); err == nil {
			scanURL = url
		}
	}

	return map[string]any{
		"id":           item.ID,
		"number":       item.Number,
		"sender":       item.Sender,
		"subject":      item.Subject,
		"scanPath":     item.ScanPath,
		"scanUrl":      scanURL,
		"receivedBy":   item.ReceivedBy,
		"receivedAt":   item.ReceivedAt,
		"dispositions": dispViews,
	}, nil
}

func (s *Service) ListIncomingLetters(ctx context.Context) ([]store.IncomingLetter, error) {
	return s.store.ListIncomingLetters(ctx)
}

func (s *Service) CreateDisposition(ctx context.Context, incomingID string, input DispositionInput, actor Session) (store.Disposition, error) {
	if strings.TrimSpace(input.Instruction) == "" {
		return store.Disposition{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "instruction is required", nil)
	}
	if _, err := s.store.GetIncomingLetter(ctx, incomingID); err != nil {
		return store.Disposition{}, err
	}
	assignee, err := s.store.GetUserByID(ctx, input.AssignedTo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Disposition{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assignee does not exist", nil)
		}
		return store.Disposition{}, err
	}

	item := store.Disposition{
		ID:               util.NewID("dsp"),
		IncomingLetterID: incomingID,
		AssignedTo:       assignee.ID,
		Instruction:      strings.TrimSpace(input.Instruction),
		Note:             strings.TrimSpace(input.Note),
		CreatedBy:        actor.UserID,
	}
	if err := s.store.InsertDisposition(ctx, item); err != nil {
		return store.Disposition{}, err
	}
	return item, nil
}

// ArchiveIncomingLetter records an incoming letter in the archive.
func (s *Service) ArchiveIncomingLetter(ctx context.Context, incomingID string, actor Session) error {
	item, err := s.store.GetIncomingLetter(ctx, incomingID)
	if err != nil {
		return err
	}
	ref := item.ID
	return s.store.InsertArchiveEntry(ctx, store.ArchiveEntry{
		Kind:             store.ArchiveIncoming,
		IncomingLetterID: &ref,
		Title:            item.Number + " " + item.Subject,
		ArchivedBy:       actor.UserID,
	})
}

// ArchiveDocument records a standalone stored document in the archive.
func (s *Service) ArchiveDocument(ctx context.Context, title, contentType string, data []byte, actor Session) (store.ArchiveEntry, error) {
	if s.objects == nil {
		return store.ArchiveEntry{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured", nil)
	}
	if strings.TrimSpace(title) == "" {
		return store.ArchiveEntry{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if len(data) == 0 {
		return store.ArchiveEntry{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "document body is empty", nil)
	}

	objectPath := fmt.Sprintf("archive/%s/%s", util.NewID(""), objectName(title))
	stored, err := s.objects.Put(ctx, objectPath, contentType, data)
	if err != nil {
		return store.ArchiveEntry{}, err
	}

	entry := store.ArchiveEntry{
		Kind:         store.ArchiveDocument,
		DocumentPath: &stored,
		Title:        strings.TrimSpace(title),
		ArchivedBy:   actor.UserID,
	}
	if err := s.store.InsertArchiveEntry(ctx, entry); err != nil {
		return store.ArchiveEntry{}, err
	}
	return entry, nil
}

func (s *Service) ListArchive(ctx context.Context, kind string, limit int) ([]store.ArchiveEntry, error) {
	return s.store.ListArchive(ctx, kind, limit)
}

// objectName flattens a title into a safe object-storage path segment.
func objectName(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '/':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}

// ---- search ----

func (s *Service) Search(q search.Query) search.Response {
	if s.searcher == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.searcher.Search(q)
}
