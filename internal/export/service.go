package export

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/dimaswi/administrasi-sub003/internal/store"
)

// DataStore is the slice of the store the exporter needs.
type DataStore interface {
	GetLetter(ctx context.Context, letterID string) (store.OutgoingLetter, error)
	ListSignatories(ctx context.Context, letterID string) ([]store.LetterSignatory, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// ExportLetter renders a letter with its signature blocks and converts
// it to PDF. The rendered body is trusted HTML produced by the template
// renderer, which escapes all variable values.
func (s *Service) ExportLetter(ctx context.Context, letterID string) (*Result, error) {
	item, err := s.store.GetLetter(ctx, letterID)
	if err != nil {
		return nil, fmt.Errorf("get letter: %w", err)
	}

	signatories, err := s.store.ListSignatories(ctx, letterID)
	if err != nil {
		return nil, fmt.Errorf("list signatories: %w", err)
	}

	lines := make([]SignatureLine, 0, len(signatories))
	for _, sig := range signatories {
		line := SignatureLine{SignedAt: sig.SignedAt}
		if user, err := s.store.GetUserByID(ctx, sig.UserID); err == nil {
			line.SignerName = user.DisplayName
		}
		lines = append(lines, line)
	}

	issuedAt := item.UpdatedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	html, err := RenderLetterHTML(LetterData{
		LetterNumber: item.LetterNumber,
		Subject:      item.Subject,
		BodyHTML:     template.HTML(item.RenderedHTML),
		IssuedAt:     issuedAt,
		Signatures:   lines,
	})
	if err != nil {
		return nil, fmt.Errorf("render letter html: %w", err)
	}

	title := item.LetterNumber
	if title == "" {
		title = item.Subject
	}
	return exportPDF(html, title)
}
