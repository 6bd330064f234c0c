package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NumberingConfig is one allocation counter. Templates sharing a
// numbering group reference the same config row and therefore the same
// sequence. last_number/year/month only change inside the allocating
// transaction while the row is locked.
type NumberingConfig struct {
	ID           string
	Code         string
	Format       string
	CounterReset string
	LastNumber   int
	Year         int
	Month        int
	Padding      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DocumentTemplate struct {
	ID               string
	Name             string
	NumberingGroupID string
	Settings         string
	CreatedBy        string
	DeletedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OutgoingLetter struct {
	ID             string
	TemplateID     string
	LetterNumber   string
	Subject        string
	Status         string
	VariableValues string
	RenderedHTML   string
	PDFPath        string
	CurrentVersion int
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LetterSignatory is one required approver for one version of a letter.
// Version records which revision cycle materialized the row; the active
// queue is the set of rows matching the letter's current_version.
type LetterSignatory struct {
	ID           string
	LetterID     string
	UserID       string
	Version      int
	SignOrder    int
	Status       string
	Notes        string
	DocumentHash string
	SignedAt     *time.Time
	CreatedAt    time.Time
}

// LetterRevision is an append-only snapshot keyed by (letter_id, version).
type LetterRevision struct {
	LetterID         string
	Version          int
	VariableValues   string
	RenderedHTML     string
	PDFPath          string
	RevisionNotes    string
	RequestedChanges string
	CreatedBy        string
	CreatedAt        time.Time
}

type IncomingLetter struct {
	ID         string
	Number     string
	Sender     string
	Subject    string
	ScanPath   string
	ReceivedBy string
	ReceivedAt time.Time
	CreatedAt  time.Time
}

// Disposition is a routing/annotation instruction attached to an
// incoming letter.
type Disposition struct {
	ID               string
	IncomingLetterID string
	AssignedTo       string
	Instruction      string
	Note             string
	CreatedBy        string
	CreatedAt        time.Time
}

// Archive entry kinds.
const (
	ArchiveOutgoing = "outgoing"
	ArchiveIncoming = "incoming"
	ArchiveDocument = "document"
)

// ArchiveEntry is a tagged variant over the three archivable record
// kinds; exactly one owning reference is populated per Kind.
type ArchiveEntry struct {
	ID               int64
	Kind             string
	OutgoingLetterID *string
	IncomingLetterID *string
	DocumentPath     *string
	Title            string
	ArchivedBy       string
	ArchivedAt       time.Time
}
