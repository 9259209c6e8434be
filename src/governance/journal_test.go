package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journalDAO has executed an upload of Qm1 and a share of Qm2, and holds
// passed but unexecuted proposals 3..8.
func journalDAO(t *testing.T) (*Engine, time.Time) {
	t.Helper()
	e := dao(t)
	require.NoError(t, e.AddMember(admin, bob))
	now := passAndExecute(t, e, alice, Upload, "Qm1", t0)
	now = passAndExecute(t, e, alice, Share, "Qm2", now)

	pending := []struct {
		typ ProposalType
		cid string
	}{
		{Upload, "Qm1"}, // 3: adds bob to existing grants
		{Upload, "Qm9"}, // 4: new cid
		{Delete, "Qm1"}, // 5
		{Delete, "Qm2"}, // 6: public
		{Share, "Qm3"},  // 7
		{Share, "Qm2"},  // 8: already public
	}
	for _, p := range pending {
		id, err := e.Propose(bob, p.typ, p.cid, "f", 0, MinVotingPeriod, now)
		require.NoError(t, err)
		require.NoError(t, e.Vote(bob, id, true, now))
	}
	return e, now.Add(MinVotingPeriod)
}

func TestRollbackRevertsEveryMutation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Engine, now time.Time) error
		changes bool
	}{
		{"add member", func(e *Engine, _ time.Time) error { return e.AddMember(admin, carol) }, true},
		{"remove member", func(e *Engine, _ time.Time) error { return e.RemoveMember(admin, bob) }, true},
		{"propose", func(e *Engine, now time.Time) error {
			_, err := e.Propose(alice, Share, "Qm5", "f", 0, MinVotingPeriod, now)
			return err
		}, true},
		{"vote yes", func(e *Engine, now time.Time) error {
			id, err := e.Propose(alice, Share, "Qm5", "f", 0, MinVotingPeriod, now)
			if err != nil {
				return err
			}
			return e.Vote(admin, id, true, now)
		}, true},
		{"vote no", func(e *Engine, now time.Time) error {
			id, err := e.Propose(alice, Share, "Qm5", "f", 0, MinVotingPeriod, now)
			if err != nil {
				return err
			}
			return e.Vote(alice, id, false, now)
		}, true},
		{"execute upload on granted cid", func(e *Engine, now time.Time) error { _, err := e.Execute(bob, 3, now); return err }, true},
		{"execute upload on new cid", func(e *Engine, now time.Time) error { _, err := e.Execute(bob, 4, now); return err }, true},
		{"execute delete", func(e *Engine, now time.Time) error { _, err := e.Execute(admin, 5, now); return err }, true},
		{"execute delete of public cid", func(e *Engine, now time.Time) error { _, err := e.Execute(admin, 6, now); return err }, true},
		{"execute share", func(e *Engine, now time.Time) error { _, err := e.Execute(admin, 7, now); return err }, true},
		{"execute share of public cid", func(e *Engine, now time.Time) error { _, err := e.Execute(admin, 8, now); return err }, true},
		{"failed vote", func(e *Engine, now time.Time) error {
			if err := e.Vote(carol, 3, true, now); err == nil {
				t.Fatal("non-member vote accepted")
			}
			return nil
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, now := journalDAO(t)
			before := e.Snapshot()

			e.Begin()
			require.NoError(t, tt.mutate(e, now))
			if tt.changes {
				assert.NotEqual(t, before, e.Snapshot())
			}
			e.Rollback()
			assert.Equal(t, before, e.Snapshot())

			// rolled-back state still passes the restore checks
			_, err := Restore(e.Snapshot())
			require.NoError(t, err)
		})
	}
}

func TestCommitKeepsMutations(t *testing.T) {
	e, now := journalDAO(t)

	e.Begin()
	_, err := e.Execute(admin, 5, now)
	require.NoError(t, err)
	e.Commit()

	e.Begin()
	require.NoError(t, e.AddMember(admin, carol))
	e.Rollback()

	assert.False(t, e.HasAccess("Qm1", alice))
	assert.False(t, e.IsMember(carol))
	p, err := e.Proposal(5)
	require.NoError(t, err)
	assert.True(t, p.Executed)
}

func TestMutationsOutsideBeginAreNotJournaled(t *testing.T) {
	e := dao(t)
	require.NoError(t, e.AddMember(admin, bob))
	e.Rollback()
	assert.True(t, e.IsMember(bob))
	assert.Equal(t, uint64(3), e.MemberCount())
}
