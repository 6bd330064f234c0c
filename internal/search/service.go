package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// PostgreSQL full-text search.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil when
// Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexLetter pushes an outgoing letter into Meilisearch, fire-and-forget.
func (s *Service) IndexLetter(record LetterRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexLetter(record); err != nil {
			log.Printf("search: index letter %s: %v", record.ID, err)
		}
	}()
}

// IndexIncoming pushes an incoming letter into Meilisearch, fire-and-forget.
func (s *Service) IndexIncoming(record IncomingRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexIncoming(record); err != nil {
			log.Printf("search: index incoming %s: %v", record.ID, err)
		}
	}()
}

// ReindexAllFromPG reads every searchable record from PostgreSQL and
// pushes them to Meilisearch. Called at startup when Meilisearch is up.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	letters, incomings, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexLetters(letters); err != nil {
		log.Printf("search: reindex letters: %v", err)
	}
	if err := s.meili.IndexIncomings(incomings); err != nil {
		log.Printf("search: reindex incoming: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
