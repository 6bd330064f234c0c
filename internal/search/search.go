package search

// ResultType identifies the kind of record in a search result.
type ResultType string

const (
	ResultLetter   ResultType = "letter"
	ResultIncoming ResultType = "incoming"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterStatus string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// LetterRecord is the data indexed for an outgoing letter.
type LetterRecord struct {
	ID           string `json:"id"`
	LetterNumber string `json:"letterNumber"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	Status       string `json:"status"`
}

// IncomingRecord is the data indexed for an incoming letter.
type IncomingRecord struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
}
