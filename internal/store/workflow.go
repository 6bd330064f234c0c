package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dimaswi/administrasi-sub003/internal/letter"
	"github.com/dimaswi/administrasi-sub003/internal/numbering"
)

// SignatorySlot is one approver position materialized at submission.
type SignatorySlot struct {
	ID        string
	UserID    string
	SignOrder int
}

// SubmitLetter moves a draft into the approval flow in one transaction:
// it allocates the letter number (only on first submission), flips the
// status, materializes the signatory queue for the current version, and
// snapshots the revision. The numbering config row is locked for the
// duration so concurrent submissions in the same group serialize and
// never observe the same counter value.
func (s *PostgresStore) SubmitLetter(ctx context.Context, letterID string, slots []SignatorySlot, notes string, now time.Time) (OutgoingLetter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback()

	var item OutgoingLetter
	err = tx.QueryRowContext(ctx, `
		SELECT id, template_id, COALESCE(letter_number, ''), subject, status,
			variable_values::text, rendered_html, COALESCE(pdf_path, ''), current_version, created_by
		FROM outgoing_letters
		WHERE id=$1
		FOR UPDATE
	`, letterID).Scan(
		&item.ID, &item.TemplateID, &item.LetterNumber, &item.Subject, &item.Status,
		&item.VariableValues, &item.RenderedHTML, &item.PDFPath, &item.CurrentVersion, &item.CreatedBy,
	)
	if err != nil {
		return OutgoingLetter{}, err
	}
	if !letter.Submittable(item.Status) {
		return OutgoingLetter{}, ErrStateConflict
	}

	// The number is allocated exactly once per letter. A resubmission
	// after requested changes keeps the original number.
	if item.LetterNumber == "" {
		number, err := allocateNumber(ctx, tx, item.TemplateID, now)
		if err != nil {
			return OutgoingLetter{}, err
		}
		item.LetterNumber = number
	}

	item.Status = letter.StatusPendingApproval
	_, err = tx.ExecContext(ctx, `
		UPDATE outgoing_letters SET letter_number=$2, status=$3, updated_at=NOW() WHERE id=$1
	`, item.ID, item.LetterNumber, item.Status)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("mark letter submitted: %w", err)
	}

	for _, slot := range slots {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO letter_signatories (id, letter_id, user_id, version, sign_order, status)
			VALUES ($1, $2, $3, $4, $5, 'pending')
		`, slot.ID, item.ID, slot.UserID, item.CurrentVersion, slot.SignOrder)
		if err != nil {
			return OutgoingLetter{}, fmt.Errorf("insert signatory: %w", err)
		}
	}

	// A resubmission lands on the version RequestChanges already opened,
	// so the snapshot for the current version is refreshed in place; the
	// reviewer's requested_changes on that row are preserved.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO letter_revisions (letter_id, version, variable_values, rendered_html, pdf_path, revision_notes, created_by)
		VALUES ($1, $2, $3::jsonb, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
		ON CONFLICT (letter_id, version) DO UPDATE
		SET variable_values=EXCLUDED.variable_values,
			rendered_html=EXCLUDED.rendered_html,
			pdf_path=EXCLUDED.pdf_path,
			revision_notes=EXCLUDED.revision_notes
	`, item.ID, item.CurrentVersion, item.VariableValues, item.RenderedHTML, item.PDFPath, notes, item.CreatedBy)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("write revision snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return OutgoingLetter{}, fmt.Errorf("commit submit: %w", err)
	}
	return item, nil
}

// allocateNumber locks the numbering config shared by the letter's
// template, advances the counter (resetting at period boundaries) and
// returns the formatted number.
func allocateNumber(ctx context.Context, tx *sql.Tx, templateID string, now time.Time) (string, error) {
	var cfg NumberingConfig
	err := tx.QueryRowContext(ctx, `
		SELECT nc.id, nc.code, nc.format, nc.counter_reset, nc.last_number, nc.year, nc.month, nc.padding
		FROM numbering_configs nc
		JOIN document_templates dt ON dt.numbering_group_id = nc.id
		WHERE dt.id = $1
		FOR UPDATE OF nc
	`, templateID).Scan(&cfg.ID, &cfg.Code, &cfg.Format, &cfg.CounterReset, &cfg.LastNumber, &cfg.Year, &cfg.Month, &cfg.Padding)
	if err != nil {
		return "", fmt.Errorf("lock numbering config: %w", err)
	}

	policy, err := numbering.ParsePolicy(cfg.CounterReset)
	if err != nil {
		return "", err
	}
	year, month, next := numbering.NextState(policy, cfg.Year, cfg.Month, cfg.LastNumber, now)

	_, err = tx.ExecContext(ctx, `
		UPDATE numbering_configs SET last_number=$2, year=$3, month=$4, updated_at=NOW() WHERE id=$1
	`, cfg.ID, next, year, month)
	if err != nil {
		return "", fmt.Errorf("advance numbering counter: %w", err)
	}
	return numbering.Render(cfg.Format, next, cfg.Padding, cfg.Code, now), nil
}

// ApproveSignatory records one approval and recomputes the letter
// status, all under row locks. Sequential signatories acting before all
// lower orders are approved get ErrOutOfOrder and nothing is written.
func (s *PostgresStore) ApproveSignatory(ctx context.Context, signatoryID, actorID, documentHash string, now time.Time) (OutgoingLetter, error) {
	return s.decideSignatory(ctx, signatoryID, actorID, letter.SignApproved, "", documentHash, now)
}

// RejectSignatory records one rejection. Rejection is never blocked by
// sign order; a single rejection moves the letter to rejected.
func (s *PostgresStore) RejectSignatory(ctx context.Context, signatoryID, actorID, notes string, now time.Time) (OutgoingLetter, error) {
	return s.decideSignatory(ctx, signatoryID, actorID, letter.SignRejected, notes, "", now)
}

func (s *PostgresStore) decideSignatory(ctx context.Context, signatoryID, actorID, decision, notes, documentHash string, now time.Time) (OutgoingLetter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("begin decision: %w", err)
	}
	defer tx.Rollback()

	var target LetterSignatory
	err = tx.QueryRowContext(ctx, `
		SELECT id, letter_id, user_id, version, sign_order, status
		FROM letter_signatories
		WHERE id=$1
		FOR UPDATE
	`, signatoryID).Scan(&target.ID, &target.LetterID, &target.UserID, &target.Version, &target.SignOrder, &target.Status)
	if err != nil {
		return OutgoingLetter{}, err
	}
	if target.UserID != actorID {
		return OutgoingLetter{}, ErrWrongActor
	}
	if target.Status != letter.SignPending {
		return OutgoingLetter{}, ErrStateConflict
	}

	var item OutgoingLetter
	err = tx.QueryRowContext(ctx, `
		SELECT id, template_id, COALESCE(letter_number, ''), subject, status,
			variable_values::text, rendered_html, COALESCE(pdf_path, ''), current_version, created_by
		FROM outgoing_letters
		WHERE id=$1
		FOR UPDATE
	`, target.LetterID).Scan(
		&item.ID, &item.TemplateID, &item.LetterNumber, &item.Subject, &item.Status,
		&item.VariableValues, &item.RenderedHTML, &item.PDFPath, &item.CurrentVersion, &item.CreatedBy,
	)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("lock letter: %w", err)
	}
	if !letter.Approvable(item.Status) {
		return OutgoingLetter{}, ErrStateConflict
	}
	// A signatory from a superseded revision cannot act on the letter.
	if target.Version != item.CurrentVersion {
		return OutgoingLetter{}, ErrStateConflict
	}

	queue, err := lockQueue(ctx, tx, item.ID, item.CurrentVersion)
	if err != nil {
		return OutgoingLetter{}, err
	}

	if decision == letter.SignApproved {
		if blockers := letter.OrderBlockers(queue, letter.Signatory{ID: target.ID, UserID: target.UserID, SignOrder: target.SignOrder, Status: target.Status}); len(blockers) > 0 {
			return OutgoingLetter{}, ErrOutOfOrder
		}
	}

	// signed_at records when a signature landed; rejections carry no
	// signature, only notes.
	var signedAt *time.Time
	if decision == letter.SignApproved {
		signedAt = &now
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE letter_signatories
		SET status=$2, notes=NULLIF($3, ''), document_hash=NULLIF($4, ''), signed_at=$5
		WHERE id=$1
	`, target.ID, decision, notes, documentHash, signedAt)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("record decision: %w", err)
	}

	for i := range queue {
		if queue[i].ID == target.ID {
			queue[i].Status = decision
		}
	}
	item.Status = letter.Aggregate(queue)
	_, err = tx.ExecContext(ctx, `
		UPDATE outgoing_letters SET status=$2, updated_at=NOW() WHERE id=$1
	`, item.ID, item.Status)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("update letter status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return OutgoingLetter{}, fmt.Errorf("commit decision: %w", err)
	}
	return item, nil
}

func lockQueue(ctx context.Context, tx *sql.Tx, letterID string, version int) ([]letter.Signatory, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, sign_order, status
		FROM letter_signatories
		WHERE letter_id=$1 AND version=$2
		ORDER BY sign_order ASC, created_at ASC
		FOR UPDATE
	`, letterID, version)
	if err != nil {
		return nil, fmt.Errorf("lock signatory queue: %w", err)
	}
	defer rows.Close()

	queue := make([]letter.Signatory, 0)
	for rows.Next() {
		var item letter.Signatory
		if err := rows.Scan(&item.ID, &item.UserID, &item.SignOrder, &item.Status); err != nil {
			return nil, fmt.Errorf("scan queue signatory: %w", err)
		}
		queue = append(queue, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	return queue, nil
}

// RequestChanges reopens a letter for editing: the version advances, the
// status returns to draft and the reviewer's requested changes are
// recorded on a fresh revision snapshot. Signatory rows of the
// superseded version stay for audit and can no longer act.
func (s *PostgresStore) RequestChanges(ctx context.Context, letterID, requestedChanges, actorID string) (OutgoingLetter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("begin request changes: %w", err)
	}
	defer tx.Rollback()

	var item OutgoingLetter
	err = tx.QueryRowContext(ctx, `
		SELECT id, template_id, COALESCE(letter_number, ''), subject, status,
			variable_values::text, rendered_html, COALESCE(pdf_path, ''), current_version, created_by
		FROM outgoing_letters
		WHERE id=$1
		FOR UPDATE
	`, letterID).Scan(
		&item.ID, &item.TemplateID, &item.LetterNumber, &item.Subject, &item.Status,
		&item.VariableValues, &item.RenderedHTML, &item.PDFPath, &item.CurrentVersion, &item.CreatedBy,
	)
	if err != nil {
		return OutgoingLetter{}, err
	}
	if !letter.Reopenable(item.Status) {
		return OutgoingLetter{}, ErrStateConflict
	}

	item.CurrentVersion++
	item.Status = letter.StatusDraft
	_, err = tx.ExecContext(ctx, `
		UPDATE outgoing_letters SET status='draft', current_version=$2, updated_at=NOW() WHERE id=$1
	`, item.ID, item.CurrentVersion)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("reopen letter: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO letter_revisions (letter_id, version, variable_values, rendered_html, pdf_path, requested_changes, created_by)
		VALUES ($1, $2, $3::jsonb, $4, NULLIF($5, ''), $6, $7)
	`, item.ID, item.CurrentVersion, item.VariableValues, item.RenderedHTML, item.PDFPath, requestedChanges, actorID)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("insert revision snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return OutgoingLetter{}, fmt.Errorf("commit request changes: %w", err)
	}
	return item, nil
}

// MarkLetterSent advances a fully signed letter to sent.
func (s *PostgresStore) MarkLetterSent(ctx context.Context, letterID string) (bool, error) {
	return s.advanceStatus(ctx, letterID, letter.StatusFullySigned, letter.StatusSent)
}

func (s *PostgresStore) advanceStatus(ctx context.Context, letterID, from, to string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE outgoing_letters SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2
	`, letterID, from, to)
	if err != nil {
		return false, fmt.Errorf("advance letter status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance letter status rows: %w", err)
	}
	return affected > 0, nil
}

// ArchiveLetter moves a sent letter to archived and records the archive
// entry in the same transaction.
func (s *PostgresStore) ArchiveLetter(ctx context.Context, letterID, actorID string) (OutgoingLetter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback()

	var item OutgoingLetter
	err = tx.QueryRowContext(ctx, `
		SELECT id, template_id, COALESCE(letter_number, ''), subject, status,
			variable_values::text, rendered_html, COALESCE(pdf_path, ''), current_version, created_by
		FROM outgoing_letters
		WHERE id=$1
		FOR UPDATE
	`, letterID).Scan(
		&item.ID, &item.TemplateID, &item.LetterNumber, &item.Subject, &item.Status,
		&item.VariableValues, &item.RenderedHTML, &item.PDFPath, &item.CurrentVersion, &item.CreatedBy,
	)
	if err != nil {
		return OutgoingLetter{}, err
	}
	if item.Status != letter.StatusSent {
		return OutgoingLetter{}, ErrStateConflict
	}

	item.Status = letter.StatusArchived
	_, err = tx.ExecContext(ctx, `
		UPDATE outgoing_letters SET status='archived', updated_at=NOW() WHERE id=$1
	`, item.ID)
	if err != nil {
		return OutgoingLetter{}, fmt.Errorf("archive letter: %w", err)
	}

	letterRef := item.ID
	if err := insertArchiveEntry(ctx, tx, ArchiveEntry{
		Kind:             ArchiveOutgoing,
		OutgoingLetterID: &letterRef,
		Title:            item.LetterNumber + " " + item.Subject,
		ArchivedBy:       actorID,
	}); err != nil {
		return OutgoingLetter{}, err
	}

	if err := tx.Commit(); err != nil {
		return OutgoingLetter{}, fmt.Errorf("commit archive: %w", err)
	}
	return item, nil
}
