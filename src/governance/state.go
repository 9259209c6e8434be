package governance

import (
	"fmt"
	"sort"
)

// State is the persisted shape of an Engine.
type State struct {
	Admin       string
	Members     map[string]bool
	MemberCount uint64
	Proposals   []ProposalState
	Access      map[string]map[string]bool
	PublicCIDs  map[string]bool
}

type ProposalState struct {
	Proposal
	Voters []string
}

func (e *Engine) Snapshot() State {
	s := State{
		Admin:       e.admin,
		Members:     make(map[string]bool, len(e.members)),
		MemberCount: e.memberCount,
		Proposals:   make([]ProposalState, len(e.proposals)),
		Access:      make(map[string]map[string]bool, len(e.access)),
		PublicCIDs:  make(map[string]bool, len(e.publicCIDs)),
	}
	for addr, ok := range e.members {
		s.Members[addr] = ok
	}
	for i, p := range e.proposals {
		voters := make([]string, 0, len(p.voters))
		for v := range p.voters {
			voters = append(voters, v)
		}
		sort.Strings(voters)
		s.Proposals[i] = ProposalState{Proposal: p.copy(), Voters: voters}
	}
	for cid, grants := range e.access {
		m := make(map[string]bool, len(grants))
		for addr, ok := range grants {
			m[addr] = ok
		}
		s.Access[cid] = m
	}
	for cid := range e.publicCIDs {
		s.PublicCIDs[cid] = true
	}
	return s
}

// Restore rebuilds an Engine from persisted state, rejecting state that
// breaks the membership, id or tally invariants.
func Restore(s State) (*Engine, error) {
	if s.Admin == "" || !s.Members[s.Admin] {
		return nil, fmt.Errorf("%w: admin %q is not a member", ErrCorruptState, s.Admin)
	}

	e := &Engine{
		admin:      s.Admin,
		members:    make(map[string]bool, len(s.Members)),
		proposals:  make([]*Proposal, 0, len(s.Proposals)),
		access:     make(map[string]map[string]bool, len(s.Access)),
		publicCIDs: make(map[string]bool, len(s.PublicCIDs)),
	}
	for addr, ok := range s.Members {
		if ok {
			e.members[addr] = true
			e.memberCount++
		}
	}
	if e.memberCount != s.MemberCount {
		return nil, fmt.Errorf("%w: member count %d, %d members", ErrCorruptState, s.MemberCount, e.memberCount)
	}

	for i, ps := range s.Proposals {
		if ps.ID != uint64(i)+1 {
			return nil, fmt.Errorf("%w: proposal %d at position %d", ErrCorruptState, ps.ID, i+1)
		}
		if !ps.Type.Valid() {
			return nil, fmt.Errorf("%w: proposal %d has type %d", ErrCorruptState, ps.ID, ps.Type)
		}
		if uint64(len(ps.Voters)) != ps.YesVotes+ps.NoVotes {
			return nil, fmt.Errorf("%w: proposal %d has %d voters for %d votes",
				ErrCorruptState, ps.ID, len(ps.Voters), ps.YesVotes+ps.NoVotes)
		}
		p := ps.Proposal
		p.voters = make(map[string]bool, len(ps.Voters))
		for _, v := range ps.Voters {
			p.voters[v] = true
		}
		if len(p.voters) != len(ps.Voters) {
			return nil, fmt.Errorf("%w: proposal %d has duplicate voters", ErrCorruptState, ps.ID)
		}
		e.proposals = append(e.proposals, &p)
	}

	for cid, grants := range s.Access {
		m := make(map[string]bool, len(grants))
		for addr, ok := range grants {
			if ok {
				m[addr] = true
			}
		}
		if len(m) > 0 {
			e.access[cid] = m
		}
	}
	for cid, ok := range s.PublicCIDs {
		if ok {
			e.publicCIDs[cid] = true
		}
	}
	return e, nil
}
