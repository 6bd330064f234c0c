package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxLetters  = "surat_letters"
	idxIncoming = "surat_incoming"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The
// background health loop keeps retrying when Meilisearch is down, so a
// temporary outage only degrades search to the PostgreSQL fallback.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxLetters,
			filterable: []string{"status"},
			searchable: []string{"letterNumber", "subject", "body"},
		},
		{
			uid:        idxIncoming,
			searchable: []string{"number", "sender", "subject"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		if len(idx.filterable) > 0 {
			filterable := make([]interface{}, len(idx.filterable))
			for i, v := range idx.filterable {
				filterable[i] = v
			}
			if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
				log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
			}
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	targets := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxLetters, ResultLetter},
		{idxIncoming, ResultIncoming},
	}

	var queries []*meili.SearchRequest
	for _, target := range targets {
		if q.FilterType != "" && q.FilterType != target.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              target.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}
		if q.FilterStatus != "" && target.rtyp == ResultLetter {
			sr.Filter = []string{fmt.Sprintf("status = %q", q.FilterStatus)}
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := ResultIncoming
		if sr.IndexUID == idxLetters {
			rtyp = ResultLetter
		}
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp, ID: decodeString(hit, "id")}
	switch rtyp {
	case ResultLetter:
		r.Status = decodeString(hit, "status")
		number := firstNonBlank(decodeFormattedString(hit, "letterNumber"), decodeString(hit, "letterNumber"))
		subject := firstNonBlank(decodeFormattedString(hit, "subject"), decodeString(hit, "subject"))
		r.Title = strings.TrimSpace(number + " " + subject)
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
	case ResultIncoming:
		number := firstNonBlank(decodeFormattedString(hit, "number"), decodeString(hit, "number"))
		subject := firstNonBlank(decodeFormattedString(hit, "subject"), decodeString(hit, "subject"))
		r.Title = strings.TrimSpace(number + " " + subject)
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "sender"), decodeString(hit, "sender"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexLetter adds or updates an outgoing letter in the search index.
func (m *Meili) IndexLetter(record LetterRecord) error {
	_, err := m.client.Index(idxLetters).AddDocuments([]LetterRecord{record}, nil)
	return err
}

// IndexIncoming adds or updates an incoming letter in the search index.
func (m *Meili) IndexIncoming(record IncomingRecord) error {
	_, err := m.client.Index(idxIncoming).AddDocuments([]IncomingRecord{record}, nil)
	return err
}

// IndexLetters bulk-indexes outgoing letters.
func (m *Meili) IndexLetters(records []LetterRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLetters).AddDocuments(records, nil)
	return err
}

// IndexIncomings bulk-indexes incoming letters.
func (m *Meili) IndexIncomings(records []IncomingRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxIncoming).AddDocuments(records, nil)
	return err
}
