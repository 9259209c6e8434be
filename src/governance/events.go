package governance

import "time"

type EventKind string

const (
	EventMemberAdded      EventKind = "MemberAdded"
	EventMemberRemoved    EventKind = "MemberRemoved"
	EventFileProposed     EventKind = "FileProposed"
	EventVoted            EventKind = "Voted"
	EventProposalExecuted EventKind = "ProposalExecuted"
)

// Event records a committed state change for subscribers.
type Event struct {
	Kind       EventKind
	Actor      string
	Member     string // membership events
	ProposalID uint64
	Type       ProposalType
	CID        string
	FileName   string
	Support    bool // Voted
	At         time.Time
}
