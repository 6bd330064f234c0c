// Package letter holds the pure state rules of the outgoing-letter
// workflow: which statuses exist, which transitions are legal, how the
// signatory queue is ordered, and how the letter's aggregate status is
// derived from its signatories.
package letter

// Letter statuses.
const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusPartiallySigned = "partially_signed"
	StatusFullySigned     = "fully_signed"
	StatusRejected        = "rejected"
	StatusSent            = "sent"
	StatusArchived        = "archived"
)

// Signatory statuses.
const (
	SignPending  = "pending"
	SignApproved = "approved"
	SignRejected = "rejected"
)

// Signatory is the slice of a letter_signatories row the state rules need.
// SignOrder 0 means the signatory acts in parallel; a positive value is a
// strict position in the signing sequence.
type Signatory struct {
	ID        string
	UserID    string
	SignOrder int
	Status    string
}

// Approvable reports whether a letter in the given status can still
// receive signatory decisions.
func Approvable(status string) bool {
	return status == StatusPendingApproval || status == StatusPartiallySigned
}

// Submittable reports whether a letter can be submitted for approval.
func Submittable(status string) bool {
	return status == StatusDraft
}

// Reopenable reports whether a change request may return the letter to
// draft for a new revision cycle.
func Reopenable(status string) bool {
	return status == StatusPendingApproval || status == StatusPartiallySigned || status == StatusRejected
}

// OrderBlockers returns the signatories that must approve before the
// target may act. Parallel signatories (order 0) are never blocked; a
// sequential signatory is blocked by every pending or rejected signatory
// with a strictly lower positive order.
func OrderBlockers(queue []Signatory, target Signatory) []Signatory {
	if target.SignOrder <= 0 {
		return nil
	}
	blockers := make([]Signatory, 0)
	for _, s := range queue {
		if s.ID == target.ID {
			continue
		}
		if s.SignOrder > 0 && s.SignOrder < target.SignOrder && s.Status != SignApproved {
			blockers = append(blockers, s)
		}
	}
	return blockers
}

// Aggregate derives the letter status from its active signatory queue.
// Any rejection wins immediately; all approved means fully signed; at
// least one approval with the rest pending means partially signed;
// otherwise the letter is still pending approval.
func Aggregate(queue []Signatory) string {
	approved := 0
	for _, s := range queue {
		switch s.Status {
		case SignRejected:
			return StatusRejected
		case SignApproved:
			approved++
		}
	}
	switch {
	case len(queue) > 0 && approved == len(queue):
		return StatusFullySigned
	case approved > 0:
		return StatusPartiallySigned
	default:
		return StatusPendingApproval
	}
}
