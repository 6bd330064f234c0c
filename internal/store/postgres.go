package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStateConflict marks a guarded transition attempted from the
	// wrong state (approving a non-approvable letter, double submission).
	ErrStateConflict = errors.New("state conflict")
	// ErrOutOfOrder marks a sequential signatory acting before all lower
	// sign orders are approved.
	ErrOutOfOrder = errors.New("out-of-order approval")
	// ErrWrongActor marks an approval attempt by a user other than the
	// signatory's assigned user.
	ErrWrongActor = errors.New("signatory assigned to a different user")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, LOWER($3), $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_active
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsActive)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_active
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsActive)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

// ---- refresh sessions (PostgreSQL fallback when Redis is not configured) ----

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
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.display_name, u.email, u.role, u.is_active
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role, &user.IsActive)
	if err != nil {
		return User{}, err
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

// ---- numbering configs ----

func (s *PostgresStore) InsertNumberingConfig(ctx context.Context, cfg NumberingConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO numbering_configs (id, code, format, counter_reset, last_number, year, month, padding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, cfg.ID, cfg.Code, cfg.Format, cfg.CounterReset, cfg.LastNumber, cfg.Year, cfg.Month, cfg.Padding)
	if err != nil {
		return fmt.Errorf("insert numbering config: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNumberingConfig(ctx context.Context, configID string) (NumberingConfig, error) {
	var cfg NumberingConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, format, counter_reset, last_number, year, month, padding, created_at, updated_at
		FROM numbering_configs
		WHERE id=$1
	`, configID).Scan(&cfg.ID, &cfg.Code, &cfg.Format, &cfg.CounterReset, &cfg.LastNumber, &cfg.Year, &cfg.Month, &cfg.Padding, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return NumberingConfig{}, err
	}
	return cfg, nil
}

func (s *PostgresStore) ListNumberingConfigs(ctx context.Context) ([]NumberingConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, format, counter_reset, last_number, year, month, padding, created_at, updated_at
		FROM numbering_configs
		ORDER BY code ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list numbering configs: %w", err)
	}
	defer rows.Close()

	items := make([]NumberingConfig, 0)
	for rows.Next() {
		var cfg NumberingConfig
		if err := rows.Scan(&cfg.ID, &cfg.Code, &cfg.Format, &cfg.CounterReset, &cfg.LastNumber, &cfg.Year, &cfg.Month, &cfg.Padding, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan numbering config: %w", err)
		}
		items = append(items, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate numbering configs: %w", err)
	}
	return items, nil
}

// ---- document templates ----

func (s *PostgresStore) InsertTemplate(ctx context.Context, tpl DocumentTemplate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_templates (id, name, numbering_group_id, settings_json, created_by)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, tpl.ID, tpl.Name, tpl.NumberingGroupID, tpl.Settings, tpl.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, templateID string) (DocumentTemplate, error) {
	var tpl DocumentTemplate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, numbering_group_id, settings_json::text, created_by, deleted_at, created_at, updated_at
		FROM document_templates
		WHERE id=$1
	`, templateID).Scan(&tpl.ID, &tpl.Name, &tpl.NumberingGroupID, &tpl.Settings, &tpl.CreatedBy, &tpl.DeletedAt, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return DocumentTemplate{}, err
	}
	return tpl, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context, includeDeleted bool) ([]DocumentTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, numbering_group_id, settings_json::text, created_by, deleted_at, created_at, updated_at
		FROM document_templates
		WHERE ($1::boolean OR deleted_at IS NULL)
		ORDER BY name ASC
	`, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentTemplate, 0)
	for rows.Next() {
		var tpl DocumentTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.NumberingGroupID, &tpl.Settings, &tpl.CreatedBy, &tpl.DeletedAt, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		items = append(items, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateTemplateSettings(ctx context.Context, templateID, name, settings string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE document_templates
		SET name=$2, settings_json=$3::jsonb, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL
	`, templateID, name, settings)
	if err != nil {
		return false, fmt.Errorf("update template settings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update template settings rows: %w", err)
	}
	return affected > 0, nil
}

// SoftDeleteTemplate marks a template deleted. Templates referenced by
// letters are never hard-deleted; the soft delete only hides them from
// new letters.
func (s *PostgresStore) SoftDeleteTemplate(ctx context.Context, templateID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE document_templates SET deleted_at=NOW() WHERE id=$1 AND deleted_at IS NULL
	`, templateID)
	if err != nil {
		return false, fmt.Errorf("soft delete template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete template rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) TemplateLetterCount(ctx context.Context, templateID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outgoing_letters WHERE template_id=$1`, templateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count template letters: %w", err)
	}
	return count, nil
}

// ---- outgoing letters ----

func (s *PostgresStore) InsertLetter(ctx context.Context, item OutgoingLetter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outgoing_letters (id, template_id, subject, status, variable_values, rendered_html, current_version, created_by)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
	`, item.ID, item.TemplateID, item.Subject, item.Status, item.VariableValues, item.RenderedHTML, item.CurrentVersion, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert letter: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLetter(ctx context.Context, letterID string) (OutgoingLetter, error) {
	var item OutgoingLetter
	err := s.db.QueryRowContext(ctx, `
		SELECT id, template_id, COALESCE(letter_number, ''), subject, status,
			variable_values::text, rendered_html, COALESCE(pdf_path, ''), current_version, created_by, created_at, updated_at
		FROM outgoing_letters
		WHERE id=$1
	`, letterID).Scan(
		&item.ID, &item.TemplateID, &item.LetterNumber, &item.Subject, &item.Status,
		&item.VariableValues, &item.RenderedHTML, &item.PDFPath, &item.CurrentVersion, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return OutgoingLetter{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListLetters(ctx context.Context, status string) ([]OutgoingLetter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, COALESCE(letter_number, ''), subject, status,
			variable_values::text, rendered_html, COALESCE(pdf_path, ''), current_version, created_by, created_at, updated_at
		FROM outgoing_letters
		WHERE ($1='' OR status=$1)
		ORDER BY updated_at DESC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	defer rows.Close()

	items := make([]OutgoingLetter, 0)
	for rows.Next() {
		var item OutgoingLetter
		if err := rows.Scan(
			&item.ID, &item.TemplateID, &item.LetterNumber, &item.Subject, &item.Status,
			&item.VariableValues, &item.RenderedHTML, &item.PDFPath, &item.CurrentVersion, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate letters: %w", err)
	}
	return items, nil
}

// UpdateDraftContent replaces a draft letter's variables and rendered
// body. Guarded: only drafts are writable by their creator.
func (s *PostgresStore) UpdateDraftContent(ctx context.Context, letterID, subject, variableValues, renderedHTML string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE outgoing_letters
		SET subject=$2, variable_values=$3::jsonb, rendered_html=$4, updated_at=NOW()
		WHERE id=$1 AND status='draft'
	`, letterID, subject, variableValues, renderedHTML)
	if err != nil {
		return false, fmt.Errorf("update draft content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update draft content rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetLetterPDFPath(ctx context.Context, letterID, pdfPath string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outgoing_letters SET pdf_path=$2, updated_at=NOW() WHERE id=$1
	`, letterID, pdfPath)
	if err != nil {
		return fmt.Errorf("set letter pdf path: %w", err)
	}
	return nil
}

// ---- signatories and revisions (reads; transitions live in workflow.go) ----

func (s *PostgresStore) ListSignatories(ctx context.Context, letterID string) ([]LetterSignatory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.letter_id, s.user_id, s.version, s.sign_order, s.status,
			COALESCE(s.notes, ''), COALESCE(s.document_hash, ''), s.signed_at, s.created_at
		FROM letter_signatories s
		JOIN outgoing_letters l ON l.id = s.letter_id
		WHERE s.letter_id=$1 AND s.version = l.current_version
		ORDER BY s.sign_order ASC, s.created_at ASC
	`, letterID)
	if err != nil {
		return nil, fmt.Errorf("list signatories: %w", err)
	}
	defer rows.Close()

	items := make([]LetterSignatory, 0)
	for rows.Next() {
		var item LetterSignatory
		if err := rows.Scan(&item.ID, &item.LetterID, &item.UserID, &item.Version, &item.SignOrder, &item.Status, &item.Notes, &item.DocumentHash, &item.SignedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signatory: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatories: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSignatory(ctx context.Context, signatoryID string) (LetterSignatory, error) {
	var item LetterSignatory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, letter_id, user_id, version, sign_order, status, COALESCE(notes, ''), COALESCE(document_hash, ''), signed_at, created_at
		FROM letter_signatories
		WHERE id=$1
	`, signatoryID).Scan(&item.ID, &item.LetterID, &item.UserID, &item.Version, &item.SignOrder, &item.Status, &item.Notes, &item.DocumentHash, &item.SignedAt, &item.CreatedAt)
	if err != nil {
		return LetterSignatory{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListRevisions(ctx context.Context, letterID string) ([]LetterRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT letter_id, version, variable_values::text, rendered_html, COALESCE(pdf_path, ''),
			COALESCE(revision_notes, ''), COALESCE(requested_changes, ''), created_by, created_at
		FROM letter_revisions
		WHERE letter_id=$1
		ORDER BY version ASC
	`, letterID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	items := make([]LetterRevision, 0)
	for rows.Next() {
		var item LetterRevision
		if err := rows.Scan(&item.LetterID, &item.Version, &item.VariableValues, &item.RenderedHTML, &item.PDFPath, &item.RevisionNotes, &item.RequestedChanges, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetRevision(ctx context.Context, letterID string, version int) (LetterRevision, error) {
	var item LetterRevision
	err := s.db.QueryRowContext(ctx, `
		SELECT letter_id, version, variable_values::text, rendered_html, COALESCE(pdf_path, ''),
			COALESCE(revision_notes, ''), COALESCE(requested_changes, ''), created_by, created_at
		FROM letter_revisions
		WHERE letter_id=$1 AND version=$2
	`, letterID, version).Scan(&item.LetterID, &item.Version, &item.VariableValues, &item.RenderedHTML, &item.PDFPath, &item.RevisionNotes, &item.RequestedChanges, &item.CreatedBy, &item.CreatedAt)
	if err != nil {
		return LetterRevision{}, err
	}
	return item, nil
}

// ---- incoming letters and dispositions ----

func (s *PostgresStore) InsertIncomingLetter(ctx context.Context, item IncomingLetter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incoming_letters (id, number, sender, subject, scan_path, received_by, received_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, item.ID, item.Number, item.Sender, item.Subject, item.ScanPath, item.ReceivedBy, item.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert incoming letter: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIncomingLetter(ctx context.Context, incomingID string) (IncomingLetter, error) {
	var item IncomingLetter
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, sender, subject, COALESCE(scan_path, ''), received_by, received_at, created_at
		FROM incoming_letters
		WHERE id=$1
	`, incomingID).Scan(&item.ID, &item.Number, &item.Sender, &item.Subject, &item.ScanPath, &item.ReceivedBy, &item.ReceivedAt, &item.CreatedAt)
	if err != nil {
		return IncomingLetter{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListIncomingLetters(ctx context.Context) ([]IncomingLetter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, sender, subject, COALESCE(scan_path, ''), received_by, received_at, created_at
		FROM incoming_letters
		ORDER BY received_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list incoming letters: %w", err)
	}
	defer rows.Close()

	items := make([]IncomingLetter, 0)
	for rows.Next() {
		var item IncomingLetter
		if err := rows.Scan(&item.ID, &item.Number, &item.Sender, &item.Subject, &item.ScanPath, &item.ReceivedBy, &item.ReceivedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incoming letter: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incoming letters: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateIncomingScanPath(ctx context.Context, incomingID, scanPath string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE incoming_letters SET scan_path=$2 WHERE id=$1
	`, incomingID, scanPath)
	if err != nil {
		return false, fmt.Errorf("update incoming scan path: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update incoming scan path rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertDisposition(ctx context.Context, item Disposition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispositions (id, incoming_letter_id, assigned_to, instruction, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.IncomingLetterID, item.AssignedTo, item.Instruction, item.Note, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert disposition: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDispositions(ctx context.Context, incomingID string) ([]Disposition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incoming_letter_id, assigned_to, instruction, COALESCE(note, ''), created_by, created_at
		FROM dispositions
		WHERE incoming_letter_id=$1
		ORDER BY created_at ASC
	`, incomingID)
	if err != nil {
		return nil, fmt.Errorf("list dispositions: %w", err)
	}
	defer rows.Close()

	items := make([]Disposition, 0)
	for rows.Next() {
		var item Disposition
		if err := rows.Scan(&item.ID, &item.IncomingLetterID, &item.AssignedTo, &item.Instruction, &item.Note, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan disposition: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispositions: %w", err)
	}
	return items, nil
}

// ---- archive ----

func (s *PostgresStore) InsertArchiveEntry(ctx context.Context, entry ArchiveEntry) error {
	return insertArchiveEntry(ctx, s.db, entry)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertArchiveEntry(ctx context.Context, db execer, entry ArchiveEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO archive_entries (kind, outgoing_letter_id, incoming_letter_id, document_path, title, archived_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.Kind, entry.OutgoingLetterID, entry.IncomingLetterID, entry.DocumentPath, entry.Title, entry.ArchivedBy)
	if err != nil {
		return fmt.Errorf("insert archive entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListArchive(ctx context.Context, kind string, limit int) ([]ArchiveEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, outgoing_letter_id, incoming_letter_id, document_path, title, archived_by, archived_at
		FROM archive_entries
		WHERE ($1='' OR kind=$1)
		ORDER BY archived_at DESC
		LIMIT $2
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	defer rows.Close()

	items := make([]ArchiveEntry, 0)
	for rows.Next() {
		var item ArchiveEntry
		if err := rows.Scan(&item.ID, &item.Kind, &item.OutgoingLetterID, &item.IncomingLetterID, &item.DocumentPath, &item.Title, &item.ArchivedBy, &item.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan archive entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive: %w", err)
	}
	return items, nil
}
