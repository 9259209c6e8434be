// Package dao serialises governance operations, persists every committed
// change and fans out events and external store mutations.
package dao

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stake-plus/filedao/src/governance"
)

var (
	ErrAdminMismatch  = errors.New("configured admin differs from stored admin")
	ErrNothingToSync  = errors.New("proposal has no storage effect to apply")
	ErrSyncInProgress = errors.New("storage step already running for proposal")
)

type Clock interface{ Now() time.Time }

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store persists committed governance changes.
type Store interface {
	Load(ctx context.Context) (governance.State, bool, error)
	Init(ctx context.Context, admin string) error
	SaveMember(ctx context.Context, addr string, member bool) error
	SaveProposal(ctx context.Context, p governance.Proposal) error
	SaveVote(ctx context.Context, p governance.Proposal, voter string, support bool, at time.Time) error
	SaveExecution(ctx context.Context, eff governance.Effect, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, ev governance.Event) error
}

// FileStore applies executed Delete and Share proposals to the external
// content store. The service never runs two Apply calls for the same
// proposal at once, but a retried call may repeat one that already
// succeeded upstream, so Apply should be idempotent.
type FileStore interface {
	Apply(ctx context.Context, eff governance.Effect) error
}

type Service struct {
	mu     sync.Mutex
	engine *governance.Engine

	store  Store
	events Publisher
	files  FileStore
	clock  Clock

	syncing map[uint64]bool // proposals with a storage step in flight
}

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

func WithFileStore(f FileStore) Option { return func(s *Service) { s.files = f } }

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// Open loads the ledger from store, or founds a new DAO with admin when the
// store is empty.
func Open(ctx context.Context, store Store, admin string, opts ...Option) (*Service, error) {
	s := &Service{store: store, clock: SystemClock{}, syncing: make(map[uint64]bool)}
	for _, o := range opts {
		o(s)
	}

	st, found, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if !found {
		if admin == "" {
			return nil, fmt.Errorf("empty ledger and no admin configured")
		}
		if err := store.Init(ctx, admin); err != nil {
			return nil, err
		}
		s.engine = governance.New(admin)
		log.Printf("dao: founded with admin %s", admin)
		return s, nil
	}

	if admin != "" && admin != st.Admin {
		return nil, fmt.Errorf("%w: %s != %s", ErrAdminMismatch, admin, st.Admin)
	}
	if s.engine, err = governance.Restore(st); err != nil {
		return nil, err
	}
	log.Printf("dao: loaded %d members, %d proposals", s.engine.MemberCount(), s.engine.ProposalCount())
	return s, nil
}

// now is truncated to whole seconds so persisted timestamps round-trip.
func (s *Service) now() time.Time { return s.clock.Now().UTC().Truncate(time.Second) }

// mutate runs fn against the engine and reverts whatever fn changed unless
// fn, including its store write, succeeds.
func (s *Service) mutate(ctx context.Context, fn func(e *governance.Engine, now time.Time) (governance.Event, error)) (governance.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.engine.Begin()
	ev, err := fn(s.engine, now)
	if err != nil {
		s.engine.Rollback()
		return ev, err
	}
	s.engine.Commit()

	ev.At = now
	if s.events != nil {
		if err := s.events.Publish(ctx, ev); err != nil {
			log.Printf("dao: publish %s: %v", ev.Kind, err)
		}
	}
	return ev, nil
}

func (s *Service) AddMember(ctx context.Context, caller, addr string) error {
	_, err := s.mutate(ctx, func(e *governance.Engine, _ time.Time) (governance.Event, error) {
		if err := e.AddMember(caller, addr); err != nil {
			return governance.Event{}, err
		}
		if err := s.store.SaveMember(ctx, addr, true); err != nil {
			return governance.Event{}, err
		}
		return governance.Event{Kind: governance.EventMemberAdded, Actor: caller, Member: addr}, nil
	})
	return err
}

func (s *Service) RemoveMember(ctx context.Context, caller, addr string) error {
	_, err := s.mutate(ctx, func(e *governance.Engine, _ time.Time) (governance.Event, error) {
		if err := e.RemoveMember(caller, addr); err != nil {
			return governance.Event{}, err
		}
		if err := s.store.SaveMember(ctx, addr, false); err != nil {
			return governance.Event{}, err
		}
		return governance.Event{Kind: governance.EventMemberRemoved, Actor: caller, Member: addr}, nil
	})
	return err
}

type ProposeRequest struct {
	Type         governance.ProposalType
	CID          string
	FileName     string
	FileSize     uint64
	VotingPeriod time.Duration
}

func (s *Service) Propose(ctx context.Context, caller string, req ProposeRequest) (uint64, error) {
	ev, err := s.mutate(ctx, func(e *governance.Engine, now time.Time) (governance.Event, error) {
		id, err := e.Propose(caller, req.Type, req.CID, req.FileName, req.FileSize, req.VotingPeriod, now)
		if err != nil {
			return governance.Event{}, err
		}
		p, _ := e.Proposal(id)
		if err := s.store.SaveProposal(ctx, p); err != nil {
			return governance.Event{}, err
		}
		return governance.Event{
			Kind: governance.EventFileProposed, Actor: caller, ProposalID: id,
			Type: p.Type, CID: p.CID, FileName: p.FileName,
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return ev.ProposalID, nil
}

func (s *Service) Vote(ctx context.Context, caller string, id uint64, support bool) error {
	_, err := s.mutate(ctx, func(e *governance.Engine, now time.Time) (governance.Event, error) {
		if err := e.Vote(caller, id, support, now); err != nil {
			return governance.Event{}, err
		}
		p, _ := e.Proposal(id)
		if err := s.store.SaveVote(ctx, p, caller, support, now); err != nil {
			return governance.Event{}, err
		}
		return governance.Event{
			Kind: governance.EventVoted, Actor: caller, ProposalID: id,
			Type: p.Type, CID: p.CID, FileName: p.FileName, Support: support,
		}, nil
	})
	return err
}

// ExecResult reports the committed effect and the outcome of the separate
// external store step. StorageErr never undoes the execution.
type ExecResult struct {
	Effect     governance.Effect
	Synced     bool
	StorageErr error
}

func (s *Service) Execute(ctx context.Context, caller string, id uint64) (ExecResult, error) {
	var eff governance.Effect
	_, err := s.mutate(ctx, func(e *governance.Engine, now time.Time) (governance.Event, error) {
		var err error
		if eff, err = e.Execute(caller, id, now); err != nil {
			return governance.Event{}, err
		}
		if err := s.store.SaveExecution(ctx, eff, now); err != nil {
			return governance.Event{}, err
		}
		s.syncing[id] = true
		p, _ := e.Proposal(id)
		return governance.Event{
			Kind: governance.EventProposalExecuted, Actor: caller, ProposalID: id,
			Type: p.Type, CID: p.CID, FileName: p.FileName,
		}, nil
	})
	if err != nil {
		return ExecResult{}, err
	}

	res := ExecResult{Effect: eff}
	res.Synced, res.StorageErr = s.applyStorage(ctx, eff)
	s.doneSyncing(id)
	if res.StorageErr != nil {
		log.Printf("dao: proposal %d executed but store update failed: %v", id, res.StorageErr)
	}
	return res, nil
}

// SyncStorage re-runs the external store step of an executed Delete or
// Share proposal.
func (s *Service) SyncStorage(ctx context.Context, caller string, id uint64) error {
	s.mu.Lock()
	p, err := s.engine.Proposal(id)
	switch {
	case err != nil:
	case !s.engine.IsMember(caller):
		err = governance.ErrUnauthorized
	case !p.Executed || p.Type == governance.Upload:
		err = ErrNothingToSync
	case s.syncing[id]:
		err = ErrSyncInProgress
	default:
		s.syncing[id] = true
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	defer s.doneSyncing(id)

	_, err = s.applyStorage(ctx, governance.Effect{ProposalID: p.ID, Type: p.Type, CID: p.CID})
	return err
}

func (s *Service) doneSyncing(id uint64) {
	s.mu.Lock()
	delete(s.syncing, id)
	s.mu.Unlock()
}

func (s *Service) applyStorage(ctx context.Context, eff governance.Effect) (bool, error) {
	if eff.Type == governance.Upload {
		return true, nil
	}
	if s.files == nil {
		return false, nil
	}
	if err := s.files.Apply(ctx, eff); err != nil {
		return false, err
	}
	return true, nil
}
