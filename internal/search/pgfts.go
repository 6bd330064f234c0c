package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher on PostgreSQL full-text search as a
// fallback when Meilisearch is unavailable.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a UNION ALL over outgoing and incoming letters using
// plainto_tsquery with ts_rank ordering and ts_headline snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultLetter {
		where := "l.search_tsv @@ " + tsQuery
		if q.FilterStatus != "" {
			where += fmt.Sprintf(" AND l.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'letter'::text AS type, l.id,
				trim(coalesce(l.letter_number, '') || ' ' || l.subject) AS title,
				ts_headline('simple', l.rendered_html, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				l.status,
				ts_rank(l.search_tsv, %s) AS rank
			FROM outgoing_letters l
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if q.FilterType == "" || q.FilterType == ResultIncoming {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'incoming'::text AS type, il.id,
				trim(il.number || ' ' || il.subject) AS title,
				ts_headline('simple', il.sender, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS status,
				ts_rank(il.search_tsv, %s) AS rank
			FROM incoming_letters il
			WHERE il.search_tsv @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]LetterRecord, []IncomingRecord, error) {
	letterRows, err := p.db.QueryContext(ctx, `
		SELECT id, COALESCE(letter_number, ''), subject, rendered_html, status
		FROM outgoing_letters
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load letters: %w", err)
	}
	defer letterRows.Close()

	letters := make([]LetterRecord, 0)
	for letterRows.Next() {
		var r LetterRecord
		if err := letterRows.Scan(&r.ID, &r.LetterNumber, &r.Subject, &r.Body, &r.Status); err != nil {
			return nil, nil, fmt.Errorf("scan letter record: %w", err)
		}
		letters = append(letters, r)
	}
	if err := letterRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate letter records: %w", err)
	}

	incomingRows, err := p.db.QueryContext(ctx, `
		SELECT id, number, sender, subject
		FROM incoming_letters
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load incoming letters: %w", err)
	}
	defer incomingRows.Close()

	incomings := make([]IncomingRecord, 0)
	for incomingRows.Next() {
		var r IncomingRecord
		if err := incomingRows.Scan(&r.ID, &r.Number, &r.Sender, &r.Subject); err != nil {
			return nil, nil, fmt.Errorf("scan incoming record: %w", err)
		}
		incomings = append(incomings, r)
	}
	if err := incomingRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate incoming records: %w", err)
	}

	return letters, incomings, nil
}
