package dao

import (
	"time"

	"github.com/stake-plus/filedao/src/governance"
)

// ProposalView is a proposal together with its state at read time.
type ProposalView struct {
	governance.Proposal
	Status   governance.Status
	Passed   bool
	TimeLeft time.Duration
}

func view(p governance.Proposal, st governance.Status, left time.Duration) ProposalView {
	return ProposalView{
		Proposal: p,
		Status:   st,
		Passed:   st == governance.StatusPassed || st == governance.StatusExecuted,
		TimeLeft: left,
	}
}

func (s *Service) read(fn func(e *governance.Engine, now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.engine, s.now())
}

func (s *Service) Admin() (admin string) {
	s.read(func(e *governance.Engine, _ time.Time) { admin = e.Admin() })
	return admin
}

func (s *Service) IsAdmin(addr string) (ok bool) {
	s.read(func(e *governance.Engine, _ time.Time) { ok = e.IsAdmin(addr) })
	return ok
}

func (s *Service) IsMember(addr string) (ok bool) {
	s.read(func(e *governance.Engine, _ time.Time) { ok = e.IsMember(addr) })
	return ok
}

func (s *Service) MemberCount() (n uint64) {
	s.read(func(e *governance.Engine, _ time.Time) { n = e.MemberCount() })
	return n
}

func (s *Service) Members() (out []string) {
	s.read(func(e *governance.Engine, _ time.Time) { out = e.Members() })
	return out
}

func (s *Service) HasAccess(cid, addr string) (ok bool) {
	s.read(func(e *governance.Engine, _ time.Time) { ok = e.HasAccess(cid, addr) })
	return ok
}

func (s *Service) PublicCIDs() (out []string) {
	s.read(func(e *governance.Engine, _ time.Time) { out = e.PublicCIDs() })
	return out
}

func (s *Service) DeletedFiles() (out []governance.Proposal) {
	s.read(func(e *governance.Engine, _ time.Time) { out = e.DeletedFiles() })
	return out
}

func (s *Service) Stats() (st governance.Stats) {
	s.read(func(e *governance.Engine, now time.Time) { st = e.Stats(now) })
	return st
}

func (s *Service) Proposal(id uint64) (pv ProposalView, err error) {
	s.read(func(e *governance.Engine, now time.Time) {
		var p governance.Proposal
		if p, err = e.Proposal(id); err != nil {
			return
		}
		st, _ := e.Status(id, now)
		left, _ := e.VotingTimeLeft(id, now)
		pv = view(p, st, left)
	})
	return pv, err
}

func (s *Service) Proposals() (out []ProposalView) {
	s.read(func(e *governance.Engine, now time.Time) {
		ps := e.Proposals()
		out = make([]ProposalView, len(ps))
		for i, p := range ps {
			st, _ := e.Status(p.ID, now)
			left, _ := e.VotingTimeLeft(p.ID, now)
			out[i] = view(p, st, left)
		}
	})
	return out
}

// HasVoted reports whether addr voted on proposal id.
func (s *Service) HasVoted(id uint64, addr string) (voted bool, err error) {
	s.read(func(e *governance.Engine, _ time.Time) { voted, err = e.HasVoted(id, addr) })
	return voted, err
}
