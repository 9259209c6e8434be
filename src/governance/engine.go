// Package governance implements the FileDAO membership, proposal and voting
// rules. An Engine is a plain aggregate with no I/O; callers serialise access
// and supply the current time on every time-sensitive call.
package governance

import (
	"sort"
	"time"
)

const (
	MinVotingPeriod = 5 * time.Second
	MaxVotingPeriod = 30 * 24 * time.Hour
)

type Engine struct {
	admin       string
	members     map[string]bool
	memberCount uint64

	proposals []*Proposal // proposals[i].ID == i+1

	access     map[string]map[string]bool // cid -> address -> granted
	publicCIDs map[string]bool

	journal   []func() // undo steps since Begin
	recording bool
}

// New creates an engine whose only member is admin.
func New(admin string) *Engine {
	return &Engine{
		admin:       admin,
		members:     map[string]bool{admin: true},
		memberCount: 1,
		access:      make(map[string]map[string]bool),
		publicCIDs:  make(map[string]bool),
	}
}

func (e *Engine) Admin() string { return e.admin }

func (e *Engine) IsAdmin(addr string) bool { return addr == e.admin }

func (e *Engine) IsMember(addr string) bool { return e.members[addr] }

func (e *Engine) MemberCount() uint64 { return e.memberCount }

// Members returns current members in lexical order.
func (e *Engine) Members() []string {
	out := make([]string, 0, len(e.members))
	for addr, ok := range e.members {
		if ok {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}

func (e *Engine) AddMember(caller, addr string) error {
	if !e.IsAdmin(caller) {
		return ErrUnauthorized
	}
	if e.members[addr] {
		return ErrAlreadyMember
	}
	e.members[addr] = true
	e.memberCount++
	e.record(func() {
		delete(e.members, addr)
		e.memberCount--
	})
	return nil
}

// RemoveMember refuses the admin as a target before looking at the caller.
func (e *Engine) RemoveMember(caller, addr string) error {
	if e.IsAdmin(addr) {
		return ErrCannotRemoveAdmin
	}
	if !e.IsAdmin(caller) {
		return ErrUnauthorized
	}
	if !e.members[addr] {
		return ErrNotAMember
	}
	delete(e.members, addr)
	e.memberCount--
	e.record(func() {
		e.members[addr] = true
		e.memberCount++
	})
	return nil
}

// HasAccess is true when addr holds a grant for cid or cid was shared.
func (e *Engine) HasAccess(cid, addr string) bool {
	if e.publicCIDs[cid] {
		return true
	}
	return e.access[cid][addr]
}

// PublicCIDs returns shared content identifiers in lexical order.
func (e *Engine) PublicCIDs() []string {
	out := make([]string, 0, len(e.publicCIDs))
	for cid := range e.publicCIDs {
		out = append(out, cid)
	}
	sort.Strings(out)
	return out
}

// Begin starts recording every mutation so that Rollback can revert them.
// Calls do not nest.
func (e *Engine) Begin() {
	e.journal = e.journal[:0]
	e.recording = true
}

// Commit keeps the mutations made since Begin.
func (e *Engine) Commit() {
	e.journal = e.journal[:0]
	e.recording = false
}

// Rollback reverts the mutations made since Begin, newest first.
func (e *Engine) Rollback() {
	for i := len(e.journal) - 1; i >= 0; i-- {
		e.journal[i]()
	}
	e.journal = e.journal[:0]
	e.recording = false
}

func (e *Engine) record(undo func()) {
	if e.recording {
		e.journal = append(e.journal, undo)
	}
}
