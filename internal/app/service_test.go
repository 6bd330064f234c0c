package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dimaswi/administrasi-sub003/internal/authpw"
	"github.com/dimaswi/administrasi-sub003/internal/config"
	"github.com/dimaswi/administrasi-sub003/internal/store"
	"github.com/dimaswi/administrasi-sub003/internal/templaterepo"
)

type fakeStore struct {
	getUserByIDFn            func(context.Context, string) (store.User, error)
	getUserByEmailFn         func(context.Context, string) (store.User, error)
	getNumberingConfigFn     func(context.Context, string) (store.NumberingConfig, error)
	insertNumberingConfigFn  func(context.Context, store.NumberingConfig) error
	getTemplateFn            func(context.Context, string) (store.DocumentTemplate, error)
	insertTemplateFn         func(context.Context, store.DocumentTemplate) error
	updateTemplateSettingsFn func(context.Context, string, string, string) (bool, error)
	softDeleteTemplateFn     func(context.Context, string) (bool, error)
	getLetterFn              func(context.Context, string) (store.OutgoingLetter, error)
	insertLetterFn           func(context.Context, store.OutgoingLetter) error
	updateDraftContentFn     func(context.Context, string, string, string, string) (bool, error)
	listSignatoriesFn        func(context.Context, string) ([]store.LetterSignatory, error)
	getSignatoryFn           func(context.Context, string) (store.LetterSignatory, error)
	listRevisionsFn          func(context.Context, string) ([]store.LetterRevision, error)
	getRevisionFn            func(context.Context, string, int) (store.LetterRevision, error)
	submitLetterFn           func(context.Context, string, []store.SignatorySlot, string, time.Time) (store.OutgoingLetter, error)
	approveSignatoryFn       func(context.Context, string, string, string, time.Time) (store.OutgoingLetter, error)
	rejectSignatoryFn        func(context.Context, string, string, string, time.Time) (store.OutgoingLetter, error)
	requestChangesFn         func(context.Context, string, string, string) (store.OutgoingLetter, error)
	markLetterSentFn         func(context.Context, string) (bool, error)
	archiveLetterFn          func(context.Context, string, string) (store.OutgoingLetter, error)
	templateLetterCountFn    func(context.Context, string) (int, error)
	getIncomingLetterFn      func(context.Context, string) (store.IncomingLetter, error)
	insertDispositionFn      func(context.Context, store.Disposition) error
	insertArchiveEntryFn     func(context.Context, store.ArchiveEntry) error
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) CreateUser(context.Context, store.User) error              { return nil }
func (f *fakeStore) UpdateUserPassword(context.Context, string, string) error { return nil }

func (f *fakeStore) InsertNumberingConfig(ctx context.Context, cfg store.NumberingConfig) error {
	if f.insertNumberingConfigFn != nil {
		return f.insertNumberingConfigFn(ctx, cfg)
	}
	return nil
}
func (f *fakeStore) GetNumberingConfig(ctx context.Context, id string) (store.NumberingConfig, error) {
	if f.getNumberingConfigFn != nil {
		return f.getNumberingConfigFn(ctx, id)
	}
	return store.NumberingConfig{}, sql.ErrNoRows
}
func (f *fakeStore) ListNumberingConfigs(context.Context) ([]store.NumberingConfig, error) {
	return nil, nil
}

func (f *fakeStore) InsertTemplate(ctx context.Context, tpl store.DocumentTemplate) error {
	if f.insertTemplateFn != nil {
		return f.insertTemplateFn(ctx, tpl)
	}
	return nil
}
func (f *fakeStore) GetTemplate(ctx context.Context, id string) (store.DocumentTemplate, error) {
	if f.getTemplateFn != nil {
		return f.getTemplateFn(ctx, id)
	}
	return store.DocumentTemplate{}, sql.ErrNoRows
}
func (f *fakeStore) ListTemplates(context.Context, bool) ([]store.DocumentTemplate, error) {
	return nil, nil
}
func (f *fakeStore) UpdateTemplateSettings(ctx context.Context, id, name, settings string) (bool, error) {
	if f.updateTemplateSettingsFn != nil {
		return f.updateTemplateSettingsFn(ctx, id, name, settings)
	}
	return false, nil
}
func (f *fakeStore) SoftDeleteTemplate(ctx context.Context, id string) (bool, error) {
	if f.softDeleteTemplateFn != nil {
		return f.softDeleteTemplateFn(ctx, id)
	}
	return false, nil
}
func (f *fakeStore) TemplateLetterCount(ctx context.Context, id string) (int, error) {
	if f.templateLetterCountFn != nil {
		return f.templateLetterCountFn(ctx, id)
	}
	return 0, nil
}

func (f *fakeStore) InsertLetter(ctx context.Context, item store.OutgoingLetter) error {
	if f.insertLetterFn != nil {
		return f.insertLetterFn(ctx, item)
	}
	return nil
}
func (f *fakeStore) GetLetter(ctx context.Context, id string) (store.OutgoingLetter, error) {
	if f.getLetterFn != nil {
		return f.getLetterFn(ctx, id)
	}
	return store.OutgoingLetter{}, sql.ErrNoRows
}
func (f *fakeStore) ListLetters(context.Context, string) ([]store.OutgoingLetter, error) {
	return nil, nil
}
func (f *fakeStore) UpdateDraftContent(ctx context.Context, id, subject, values, rendered string) (bool, error) {
	if f.updateDraftContentFn != nil {
		return f.updateDraftContentFn(ctx, id, subject, values, rendered)
	}
	return false, nil
}
func (f *fakeStore) SetLetterPDFPath(context.Context, string, string) error { return nil }
func (f *fakeStore) ListSignatories(ctx context.Context, letterID string) ([]store.LetterSignatory, error) {
	if f.listSignatoriesFn != nil {
		return f.listSignatoriesFn(ctx, letterID)
	}
	return nil, nil
}
func (f *fakeStore) GetSignatory(ctx context.Context, id string) (store.LetterSignatory, error) {
	if f.getSignatoryFn != nil {
		return f.getSignatoryFn(ctx, id)
	}
	return store.LetterSignatory{}, sql.ErrNoRows
}
func (f *fakeStore) ListRevisions(ctx context.Context, letterID string) ([]store.LetterRevision, error) {
	if f.listRevisionsFn != nil {
		return f.listRevisionsFn(ctx, letterID)
	}
	return nil, nil
}
func (f *fakeStore) GetRevision(ctx context.Context, letterID string, version int) (store.LetterRevision, error) {
	if f.getRevisionFn != nil {
		return f.getRevisionFn(ctx, letterID, version)
	}
	return store.LetterRevision{}, sql.ErrNoRows
}

func (f *fakeStore) SubmitLetter(ctx context.Context, letterID string, slots []store.SignatorySlot, notes string, now time.Time) (store.OutgoingLetter, error) {
	if f.submitLetterFn != nil {
		return f.submitLetterFn(ctx, letterID, slots, notes, now)
	}
	return store.OutgoingLetter{}, sql.ErrNoRows
}
func (f *fakeStore) ApproveSignatory(ctx context.Context, signatoryID, actorID, docHash string, now time.Time) (store.OutgoingLetter, error) {
	if f.approveSignatoryFn != nil {
		return f.approveSignatoryFn(ctx, signatoryID, actorID, docHash, now)
	}
	return store.OutgoingLetter{}, sql.ErrNoRows
}
func (f *fakeStore) RejectSignatory(ctx context.Context, signatoryID, actorID, notes string, now time.Time) (store.OutgoingLetter, error) {
	if f.rejectSignatoryFn != nil {
		return f.rejectSignatoryFn(ctx, signatoryID, actorID, notes, now)
	}
	return store.OutgoingLetter{}, sql.ErrNoRows
}
func (f *fakeStore) RequestChanges(ctx context.Context, letterID, requested, actorID string) (store.OutgoingLetter, error) {
	if f.requestChangesFn != nil {
		return f.requestChangesFn(ctx, letterID, requested, actorID)
	}
	return store.OutgoingLetter{}, sql.ErrNoRows
}
func (f *fakeStore) MarkLetterSent(ctx context.Context, letterID string) (bool, error) {
	if f.markLetterSentFn != nil {
		return f.markLetterSentFn(ctx, letterID)
	}
	return false, nil
}
func (f *fakeStore) ArchiveLetter(ctx context.Context, letterID, actorID string) (store.OutgoingLetter, error) {
	if f.archiveLetterFn != nil {
		return f.archiveLetterFn(ctx, letterID, actorID)
	}
	return store.OutgoingLetter{}, sql.ErrNoRows
}

func (f *fakeStore) InsertIncomingLetter(context.Context, store.IncomingLetter) error { return nil }
func (f *fakeStore) GetIncomingLetter(ctx context.Context, id string) (store.IncomingLetter, error) {
	if f.getIncomingLetterFn != nil {
		return f.getIncomingLetterFn(ctx, id)
	}
	return store.IncomingLetter{}, sql.ErrNoRows
}
func (f *fakeStore) ListIncomingLetters(context.Context) ([]store.IncomingLetter, error) {
	return nil, nil
}
func (f *fakeStore) UpdateIncomingScanPath(context.Context, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) InsertDisposition(ctx context.Context, item store.Disposition) error {
	if f.insertDispositionFn != nil {
		return f.insertDispositionFn(ctx, item)
	}
	return nil
}
func (f *fakeStore) ListDispositions(context.Context, string) ([]store.Disposition, error) {
	return nil, nil
}

func (f *fakeStore) InsertArchiveEntry(ctx context.Context, entry store.ArchiveEntry) error {
	if f.insertArchiveEntryFn != nil {
		return f.insertArchiveEntryFn(ctx, entry)
	}
	return nil
}
func (f *fakeStore) ListArchive(context.Context, string, int) ([]store.ArchiveEntry, error) {
	return nil, nil
}

type fakeSessions struct {
	saved   map[string]string
	revoked map[string]bool
	users   map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		saved:   map[string]string{},
		revoked: map[string]bool{},
		users:   map[string]store.User{},
	}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.saved[tokenHash] = userID
	return nil
}
func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	if f.revoked[tokenHash] {
		return store.User{}, sql.ErrNoRows
	}
	userID, ok := f.saved[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	if user, ok := f.users[userID]; ok {
		return user, nil
	}
	return store.User{ID: userID}, nil
}
func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.revoked[tokenHash] = true
	return nil
}

type fakeTemplates struct {
	commits []string
}

func (f *fakeTemplates) EnsureTemplateRepo(string, []byte, string) error { return nil }
func (f *fakeTemplates) CommitSettings(_ string, _ []byte, _, message string) (templaterepo.CommitInfo, error) {
	f.commits = append(f.commits, message)
	return templaterepo.CommitInfo{Hash: "abc1234", Message: message}, nil
}
func (f *fakeTemplates) History(string, int) ([]templaterepo.CommitInfo, error) { return nil, nil }
func (f *fakeTemplates) GetSettingsByHash(string, string) ([]byte, error) {
	return []byte(`{}`), nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
}

func newTestService(data *fakeStore) (*Service, *fakeSessions) {
	sessions := newFakeSessions()
	accounts := authpw.NewService(data)
	return New(testConfig(), data, sessions, accounts, &fakeTemplates{}), sessions
}

const validSettings = `{
	"page": {"size": "A4", "orientation": "portrait", "marginMm": 20},
	"variables": [
		{"name": "recipient", "label": "Recipient", "type": "text", "required": true}
	],
	"blocks": [
		{"type": "heading", "text": "Notification", "level": 1},
		{"type": "variable", "variable": "recipient"}
	],
	"signatureSlots": [
		{"role": "Head of Unit", "userId": "usr_head", "signOrder": 1, "label": "Approved by"},
		{"role": "Director", "userId": "usr_dir", "signOrder": 2, "label": "Authorized by"}
	]
}`

func activeUser(id, role string) store.User {
	return store.User{ID: id, DisplayName: "User " + id, Email: id + "@surat.local", Role: role, IsActive: true}
}

func TestSignInIssuesSession(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	data := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			if email != "budi@surat.local" {
				return store.User{}, sql.ErrNoRows
			}
			user := activeUser("usr_1", "editor")
			user.PasswordHash = string(hash)
			return user, nil
		},
	}
	svc, sessions := newTestService(data)

	session, err := svc.SignIn(context.Background(), "budi@surat.local", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}
	if session.Role != "editor" {
		t.Errorf("role = %q, want editor", session.Role)
	}
	if len(sessions.saved) != 1 {
		t.Errorf("expected one stored refresh session, got %d", len(sessions.saved))
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	data := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			user := activeUser("usr_1", "editor")
			user.PasswordHash = string(hash)
			return user, nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.SignIn(context.Background(), "budi@surat.local", "wrong")
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Status != 401 {
		t.Fatalf("expected 401 domain error, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	data := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return activeUser(id, "approver"), nil
		},
	}
	svc, _ := newTestService(data)

	first, err := svc.issueSession(context.Background(), activeUser("usr_9", "approver"))
	if err != nil {
		t.Fatalf("issueSession() error = %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token was not rotated")
	}
	if _, err := svc.Refresh(context.Background(), first.RefreshToken); err == nil {
		t.Error("expected old refresh token to be revoked")
	}
	if second.UserID != "usr_9" {
		t.Errorf("userId = %q, want usr_9", second.UserID)
	}
}

func TestCreateDraftValidatesVariables(t *testing.T) {
	data := &fakeStore{
		getTemplateFn: func(context.Context, string) (store.DocumentTemplate, error) {
			return store.DocumentTemplate{ID: "tpl_1", Settings: validSettings}, nil
		},
	}
	svc, _ := newTestService(data)
	actor := Session{UserID: "usr_1", Role: "editor"}

	_, err := svc.CreateDraft(context.Background(), DraftInput{
		TemplateID: "tpl_1",
		Subject:    "Budget notice",
		Values:     map[string]string{},
	}, actor)
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR for missing required variable, got %v", err)
	}
}

func TestCreateDraftRendersBody(t *testing.T) {
	var inserted store.OutgoingLetter
	data := &fakeStore{
		getTemplateFn: func(context.Context, string) (store.DocumentTemplate, error) {
			return store.DocumentTemplate{ID: "tpl_1", Settings: validSettings}, nil
		},
		insertLetterFn: func(_ context.Context, item store.OutgoingLetter) error {
			inserted = item
			return nil
		},
	}
	svc, _ := newTestService(data)

	item, err := svc.CreateDraft(context.Background(), DraftInput{
		TemplateID: "tpl_1",
		Subject:    "Budget notice",
		Values:     map[string]string{"recipient": "Finance Dept"},
	}, Session{UserID: "usr_1", Role: "editor"})
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if item.Status != "draft" || item.CurrentVersion != 1 {
		t.Errorf("status/version = %s/%d, want draft/1", item.Status, item.CurrentVersion)
	}
	if !strings.Contains(inserted.RenderedHTML, "Finance Dept") {
		t.Errorf("rendered body missing variable value: %s", inserted.RenderedHTML)
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(inserted.VariableValues), &values); err != nil {
		t.Fatalf("variable values are not valid JSON: %v", err)
	}
}

func TestCreateDraftRejectsDeletedTemplate(t *testing.T) {
	deletedAt := time.Now()
	data := &fakeStore{
		getTemplateFn: func(context.Context, string) (store.DocumentTemplate, error) {
			return store.DocumentTemplate{ID: "tpl_1", Settings: validSettings, DeletedAt: &deletedAt}, nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.CreateDraft(context.Background(), DraftInput{
		TemplateID: "tpl_1",
		Subject:    "Budget notice",
	}, Session{UserID: "usr_1", Role: "editor"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "TEMPLATE_DELETED" {
		t.Fatalf("expected TEMPLATE_DELETED, got %v", err)
	}
}

func TestUpdateDraftRequiresAuthor(t *testing.T) {
	data := &fakeStore{
		getLetterFn: func(context.Context, string) (store.OutgoingLetter, error) {
			return store.OutgoingLetter{ID: "ltr_1", Status: "draft", CreatedBy: "usr_author"}, nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.UpdateDraft(context.Background(), "ltr_1", DraftInput{}, Session{UserID: "usr_other", Role: "editor"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Status != 403 {
		t.Fatalf("expected 403 for non-author, got %v", err)
	}
}

func TestUpdateDraftConflictsWhenNotDraft(t *testing.T) {
	data := &fakeStore{
		getLetterFn: func(context.Context, string) (store.OutgoingLetter, error) {
			return store.OutgoingLetter{ID: "ltr_1", Status: "pending_approval", CreatedBy: "usr_1", TemplateID: "tpl_1"}, nil
		},
		getTemplateFn: func(context.Context, string) (store.DocumentTemplate, error) {
			return store.DocumentTemplate{ID: "tpl_1", Settings: validSettings}, nil
		},
		updateDraftContentFn: func(context.Context, string, string, string, string) (bool, error) {
			return false, nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.UpdateDraft(context.Background(), "ltr_1", DraftInput{
		Values: map[string]string{"recipient": "Finance Dept"},
	}, Session{UserID: "usr_1", Role: "editor"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "STATE_CONFLICT" {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestSubmitLetterMaterializesSlots(t *testing.T) {
	var gotSlots []store.SignatorySlot
	data := &fakeStore{
		getLetterFn: func(context.Context, string) (store.OutgoingLetter, error) {
			return store.OutgoingLetter{ID: "ltr_1", Status: "draft", CreatedBy: "usr_1", TemplateID: "tpl_1"}, nil
		},
		getTemplateFn: func(context.Context, string) (store.DocumentTemplate, error) {
			return store.DocumentTemplate{ID: "tpl_1", Settings: validSettings}, nil
		},
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return activeUser(id, "approver"), nil
		},
		submitLetterFn: func(_ context.Context, letterID string, slots []store.SignatorySlot, _ string, _ time.Time) (store.OutgoingLetter, error) {
			gotSlots = slots
			return store.OutgoingLetter{ID: letterID, Status: "pending_approval", LetterNumber: "001/SK/IX/2026"}, nil
		},
	}
	svc, _ := newTestService(data)

	item, err := svc.SubmitLetter(context.Background(), "ltr_1", "please review", Session{UserID: "usr_1", Role: "editor"})
	if err != nil {
		t.Fatalf("SubmitLetter() error = %v", err)
	}
	if item.Status != "pending_approval" {
		t.Errorf("status = %q, want pending_approval", item.Status)
	}
	if len(gotSlots) != 2 {
		t.Fatalf("expected 2 signatory slots, got %d", len(gotSlots))
	}
	if gotSlots[0].UserID != "usr_head" || gotSlots[0].SignOrder != 1 {
		t.Errorf("first slot = %+v", gotSlots[0])
	}
	if gotSlots[1].UserID != "usr_dir" || gotSlots[1].SignOrder != 2 {
		t.Errorf("second slot = %+v", gotSlots[1])
	}
	if gotSlots[0].ID == "" || gotSlots[0].ID == gotSlots[1].ID {
		t.Error("slots need distinct generated IDs")
	}
}

func TestSubmitLetterRejectsTemplateWithoutSlots(t *testing.T) {
	data := &fakeStore{
		getLetterFn: func(context.Context, string) (store.OutgoingLetter, error) {
			return store.OutgoingLetter{ID: "ltr_1", Status: "draft", CreatedBy: "usr_1", TemplateID: "tpl_1"}, nil
		},
		getTemplateFn: func(context.Context, string) (store.DocumentTemplate, error) {
			return store.DocumentTemplate{ID: "tpl_1", Settings: `{"blocks":[{"type":"paragraph","text":"hi"}]}`}, nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.SubmitLetter(context.Background(), "ltr_1", "", Session{UserID: "usr_1", Role: "editor"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "NO_SIGNATORIES" {
		t.Fatalf("expected NO_SIGNATORIES, got %v", err)
	}
}

func TestApproveSignatoryPinsDocumentHash(t *testing.T) {
	var gotHash string
	data := &fakeStore{
		getSignatoryFn: func(context.Context, string) (store.LetterSignatory, error) {
			return store.LetterSignatory{ID: "sig_1", LetterID: "ltr_1", UserID: "usr_head"}, nil
		},
		getLetterFn: func(context.Context, string) (store.OutgoingLetter, error) {
			return store.OutgoingLetter{ID: "ltr_1", Status: "pending_approval", RenderedHTML: "<p>body</p>", CreatedBy: "usr_1"}, nil
		},
		approveSignatoryFn: func(_ context.Context, _, _, docHash string, _ time.Time) (store.OutgoingLetter, error) {
			gotHash = docHash
			return store.OutgoingLetter{ID: "ltr_1", Status: "partially_signed"}, nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.ApproveSignatory(context.Background(), "sig_1", Session{UserID: "usr_head", Role: "approver"})
	if err != nil {
		t.Fatalf("ApproveSignatory() error = %v", err)
	}
	if len(gotHash) != 64 {
		t.Errorf("document hash = %q, want 64 hex chars", gotHash)
	}
}

func TestApproveSignatoryPropagatesOrderConflict(t *testing.T) {
	data := &fakeStore{
		getSignatoryFn: func(context.Context, string) (store.LetterSignatory, error) {
			return store.LetterSignatory{ID: "sig_2", LetterID: "ltr_1", UserID: "usr_dir"}, nil
		},
		getLetterFn: func(context.Context, string) (store.OutgoingLetter, error) {
			return store.OutgoingLetter{ID: "ltr_1", Status: "pending_approval"}, nil
		},
		approveSignatoryFn: func(context.Context, string, string, string, time.Time) (store.OutgoingLetter, error) {
			return store.OutgoingLetter{}, store.ErrOutOfOrder
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.ApproveSignatory(context.Background(), "sig_2", Session{UserID: "usr_dir", Role: "approver"})
	if !errors.Is(err, store.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
}

func TestRejectSignatoryRequiresNotes(t *testing.T) {
	svc, _ := newTestService(&fakeStore{})

	_, err := svc.RejectSignatory(context.Background(), "sig_1", "   ", Session{UserID: "usr_head", Role: "approver"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestSendLetterConflictsWhenNotFullySigned(t *testing.T) {
	data := &fakeStore{
		markLetterSentFn: func(context.Context, string) (bool, error) { return false, nil },
		getLetterFn: func(context.Context, string) (store.OutgoingLetter, error) {
			return store.OutgoingLetter{ID: "ltr_1", Status: "pending_approval"}, nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.SendLetter(context.Background(), "ltr_1")
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "STATE_CONFLICT" {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestGetRevisionReturnsSnapshot(t *testing.T) {
	data := &fakeStore{
		getRevisionFn: func(_ context.Context, letterID string, version int) (store.LetterRevision, error) {
			if letterID != "ltr_1" || version != 2 {
				return store.LetterRevision{}, sql.ErrNoRows
			}
			return store.LetterRevision{
				LetterID:         "ltr_1",
				Version:          2,
				VariableValues:   `{}`,
				RenderedHTML:     "<p>v2</p>",
				RequestedChanges: "fix the date",
			}, nil
		},
	}
	svc, _ := newTestService(data)

	view, err := svc.GetRevision(context.Background(), "ltr_1", 2)
	if err != nil {
		t.Fatalf("GetRevision() error = %v", err)
	}
	if view["version"] != 2 {
		t.Errorf("version = %v, want 2", view["version"])
	}
	if view["requestedChanges"] != "fix the date" {
		t.Errorf("requestedChanges = %v", view["requestedChanges"])
	}

	if _, err := svc.GetRevision(context.Background(), "ltr_1", 9); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for unknown version, got %v", err)
	}
}

func TestCreateNumberingConfigDefaults(t *testing.T) {
	var inserted store.NumberingConfig
	data := &fakeStore{
		insertNumberingConfigFn: func(_ context.Context, cfg store.NumberingConfig) error {
			inserted = cfg
			return nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.CreateNumberingConfig(context.Background(), NumberingConfigInput{
		Code:   "SK",
		Format: "{seq}/{code}/{roman_month}/{year}",
	})
	if err != nil {
		t.Fatalf("CreateNumberingConfig() error = %v", err)
	}
	if inserted.CounterReset != "yearly" {
		t.Errorf("counterReset = %q, want yearly default", inserted.CounterReset)
	}
	if inserted.Padding != 3 {
		t.Errorf("padding = %d, want 3 default", inserted.Padding)
	}
}

func TestCreateNumberingConfigRejectsBadReset(t *testing.T) {
	svc, _ := newTestService(&fakeStore{})

	_, err := svc.CreateNumberingConfig(context.Background(), NumberingConfigInput{
		Code:         "SK",
		CounterReset: "weekly",
	})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR for unknown reset policy, got %v", err)
	}
}

func TestDeleteTemplateBlockedWhileReferenced(t *testing.T) {
	data := &fakeStore{
		templateLetterCountFn: func(context.Context, string) (int, error) { return 4, nil },
	}
	svc, _ := newTestService(data)

	err := svc.DeleteTemplate(context.Background(), "tpl_1")
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "TEMPLATE_IN_USE" {
		t.Fatalf("expected TEMPLATE_IN_USE, got %v", err)
	}
}

func TestCreateDispositionValidatesAssignee(t *testing.T) {
	data := &fakeStore{
		getIncomingLetterFn: func(context.Context, string) (store.IncomingLetter, error) {
			return store.IncomingLetter{ID: "inc_1"}, nil
		},
	}
	svc, _ := newTestService(data)

	_, err := svc.CreateDisposition(context.Background(), "inc_1", DispositionInput{
		AssignedTo:  "usr_missing",
		Instruction: "Follow up",
	}, Session{UserID: "usr_1", Role: "editor"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR for unknown assignee, got %v", err)
	}
}

func TestArchiveIncomingLetterWritesEntry(t *testing.T) {
	var entry store.ArchiveEntry
	data := &fakeStore{
		getIncomingLetterFn: func(context.Context, string) (store.IncomingLetter, error) {
			return store.IncomingLetter{ID: "inc_1", Number: "B/12/2026", Subject: "Audit request"}, nil
		},
		insertArchiveEntryFn: func(_ context.Context, e store.ArchiveEntry) error {
			entry = e
			return nil
		},
	}
	svc, _ := newTestService(data)

	if err := svc.ArchiveIncomingLetter(context.Background(), "inc_1", Session{UserID: "usr_1"}); err != nil {
		t.Fatalf("ArchiveIncomingLetter() error = %v", err)
	}
	if entry.Kind != store.ArchiveIncoming {
		t.Errorf("kind = %q, want incoming", entry.Kind)
	}
	if entry.IncomingLetterID == nil || *entry.IncomingLetterID != "inc_1" {
		t.Error("archive entry must reference the incoming letter")
	}
}
