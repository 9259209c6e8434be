package governance

import (
	"fmt"
	"time"
)

type ProposalType uint8

const (
	Upload ProposalType = iota
	Delete
	Share
)

func (t ProposalType) Valid() bool { return t <= Share }

func (t ProposalType) String() string {
	switch t {
	case Upload:
		return "upload"
	case Delete:
		return "delete"
	case Share:
		return "share"
	}
	return fmt.Sprintf("ProposalType(%d)", uint8(t))
}

// ParseProposalType accepts the lower-case names produced by String.
func ParseProposalType(s string) (ProposalType, error) {
	switch s {
	case "upload":
		return Upload, nil
	case "delete":
		return Delete, nil
	case "share":
		return Share, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidProposalType, s)
}

type Status string

const (
	StatusActive   Status = "active"
	StatusPassed   Status = "passed"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
)

type Proposal struct {
	ID           uint64
	Type         ProposalType
	CID          string
	FileName     string
	FileSize     uint64
	Proposer     string
	YesVotes     uint64
	NoVotes      uint64
	VotingPeriod time.Duration
	CreatedAt    time.Time
	VotingEnd    time.Time
	Executed     bool

	voters map[string]bool
}

func (p *Proposal) open(now time.Time) bool { return now.Before(p.VotingEnd) }

func (p *Proposal) passed(now time.Time) bool {
	return !p.open(now) && p.YesVotes > p.NoVotes
}

func (p *Proposal) status(now time.Time) Status {
	switch {
	case p.Executed:
		return StatusExecuted
	case p.open(now):
		return StatusActive
	case p.YesVotes > p.NoVotes:
		return StatusPassed
	}
	return StatusRejected
}

// copy returns p without its voter set.
func (p *Proposal) copy() Proposal {
	c := *p
	c.voters = nil
	return c
}

// Effect describes what an executed proposal changed in the access records.
type Effect struct {
	ProposalID uint64
	Type       ProposalType
	CID        string
	Granted    []string // Upload only
}

func (e *Engine) lookup(id uint64) (*Proposal, error) {
	if id == 0 || id > uint64(len(e.proposals)) {
		return nil, ErrProposalNotFound
	}
	return e.proposals[id-1], nil
}

// HasVoted reports whether addr already voted on proposal id.
func (e *Engine) HasVoted(id uint64, addr string) (bool, error) {
	p, err := e.lookup(id)
	if err != nil {
		return false, err
	}
	return p.voters[addr], nil
}

func (e *Engine) ProposalCount() uint64 { return uint64(len(e.proposals)) }

// Propose registers a new proposal and returns its id.
func (e *Engine) Propose(caller string, typ ProposalType, cid, fileName string, fileSize uint64, period time.Duration, now time.Time) (uint64, error) {
	if !e.members[caller] {
		return 0, ErrUnauthorized
	}
	if !typ.Valid() {
		return 0, ErrInvalidProposalType
	}
	if period < MinVotingPeriod || period > MaxVotingPeriod {
		return 0, ErrInvalidVotingPeriod
	}

	p := &Proposal{
		ID:           uint64(len(e.proposals)) + 1,
		Type:         typ,
		CID:          cid,
		FileName:     fileName,
		FileSize:     fileSize,
		Proposer:     caller,
		VotingPeriod: period,
		CreatedAt:    now,
		VotingEnd:    now.Add(period),
		voters:       make(map[string]bool),
	}
	e.proposals = append(e.proposals, p)
	e.record(func() { e.proposals = e.proposals[:len(e.proposals)-1] })
	return p.ID, nil
}

func (e *Engine) Vote(caller string, id uint64, support bool, now time.Time) error {
	if !e.members[caller] {
		return ErrUnauthorized
	}
	p, err := e.lookup(id)
	if err != nil {
		return err
	}
	if !p.open(now) {
		return ErrVotingEnded
	}
	if p.voters[caller] {
		return ErrAlreadyVoted
	}

	p.voters[caller] = true
	if support {
		p.YesVotes++
	} else {
		p.NoVotes++
	}
	e.record(func() {
		delete(p.voters, caller)
		if support {
			p.YesVotes--
		} else {
			p.NoVotes--
		}
	})
	return nil
}

// IsProposalPassed is true once voting closed with strictly more yes than no
// votes. There is no quorum: a single yes vote passes an otherwise silent
// proposal.
func (e *Engine) IsProposalPassed(id uint64, now time.Time) (bool, error) {
	p, err := e.lookup(id)
	if err != nil {
		return false, err
	}
	return p.passed(now), nil
}

func (e *Engine) VotingTimeLeft(id uint64, now time.Time) (time.Duration, error) {
	p, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	if !p.open(now) {
		return 0, nil
	}
	return p.VotingEnd.Sub(now), nil
}

func (e *Engine) Status(id uint64, now time.Time) (Status, error) {
	p, err := e.lookup(id)
	if err != nil {
		return "", err
	}
	return p.status(now), nil
}

// Execute applies a passed proposal exactly once. Upload grants access to
// the proposer and the executing member, Delete revokes every grant for the
// cid including public sharing, Share makes the cid public.
//
// Unlike the bare exists/executed/passed checks, the caller must also be a
// member (ErrUnauthorized otherwise), since an Upload execution grants the
// caller access.
func (e *Engine) Execute(caller string, id uint64, now time.Time) (Effect, error) {
	p, err := e.lookup(id)
	if err != nil {
		return Effect{}, err
	}
	if !e.members[caller] {
		return Effect{}, ErrUnauthorized
	}
	if p.Executed {
		return Effect{}, ErrAlreadyExecuted
	}
	if !p.passed(now) {
		return Effect{}, ErrNotPassed
	}

	p.Executed = true
	e.record(func() { p.Executed = false })
	eff := Effect{ProposalID: p.ID, Type: p.Type, CID: p.CID}

	switch p.Type {
	case Upload:
		eff.Granted = []string{p.Proposer}
		if caller != p.Proposer {
			eff.Granted = append(eff.Granted, caller)
		}
		grants, existed := e.access[p.CID]
		if !existed {
			grants = make(map[string]bool)
			e.access[p.CID] = grants
		}
		var added []string
		for _, addr := range eff.Granted {
			if !grants[addr] {
				grants[addr] = true
				added = append(added, addr)
			}
		}
		e.record(func() {
			if !existed {
				delete(e.access, p.CID)
				return
			}
			for _, addr := range added {
				delete(grants, addr)
			}
		})
	case Delete:
		grants, hadGrants := e.access[p.CID]
		wasPublic := e.publicCIDs[p.CID]
		delete(e.access, p.CID)
		delete(e.publicCIDs, p.CID)
		e.record(func() {
			if hadGrants {
				e.access[p.CID] = grants
			}
			if wasPublic {
				e.publicCIDs[p.CID] = true
			}
		})
	case Share:
		if !e.publicCIDs[p.CID] {
			e.publicCIDs[p.CID] = true
			e.record(func() { delete(e.publicCIDs, p.CID) })
		}
	}
	return eff, nil
}

// Proposal returns a copy of the proposal with the given id.
func (e *Engine) Proposal(id uint64) (Proposal, error) {
	p, err := e.lookup(id)
	if err != nil {
		return Proposal{}, err
	}
	return p.copy(), nil
}

// Proposals returns copies of every proposal in id order.
func (e *Engine) Proposals() []Proposal {
	out := make([]Proposal, len(e.proposals))
	for i, p := range e.proposals {
		out[i] = p.copy()
	}
	return out
}

// DeletedFiles returns executed Delete proposals in id order.
func (e *Engine) DeletedFiles() []Proposal {
	var out []Proposal
	for _, p := range e.proposals {
		if p.Executed && p.Type == Delete {
			out = append(out, p.copy())
		}
	}
	return out
}

type Stats struct {
	Members         uint64 `json:"members"`
	Proposals       uint64 `json:"proposals"`
	ActiveProposals uint64 `json:"activeProposals"`
	Executed        uint64 `json:"executed"`
	SharedFiles     uint64 `json:"sharedFiles"`
}

func (e *Engine) Stats(now time.Time) Stats {
	s := Stats{
		Members:     e.memberCount,
		Proposals:   uint64(len(e.proposals)),
		SharedFiles: uint64(len(e.publicCIDs)),
	}
	for _, p := range e.proposals {
		if p.Executed {
			s.Executed++
		} else if p.open(now) {
			s.ActiveProposals++
		}
	}
	return s
}
