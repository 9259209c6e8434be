package data

import (
	"context"
	"fmt"
	"time"

	"github.com/stake-plus/filedao/src/api/types"
	"github.com/stake-plus/filedao/src/governance"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists governance state in MySQL. Every write runs in a single
// transaction so a failed call leaves the tables untouched.
type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Load reads the whole ledger. found is false when no admin was recorded yet.
func (s *Store) Load(ctx context.Context) (st governance.State, found bool, err error) {
	db := s.db.WithContext(ctx)

	var members []types.Member
	if err := db.Order("address").Find(&members).Error; err != nil {
		return st, false, fmt.Errorf("load members: %w", err)
	}
	st.Members = make(map[string]bool, len(members))
	for _, m := range members {
		st.Members[m.Address] = true
		st.MemberCount++
		if m.IsAdmin {
			st.Admin = m.Address
		}
	}
	if st.Admin == "" {
		return st, false, nil
	}

	var props []types.Proposal
	if err := db.Preload("Votes", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("voter")
	}).Order("id").Find(&props).Error; err != nil {
		return st, false, fmt.Errorf("load proposals: %w", err)
	}
	st.Proposals = make([]governance.ProposalState, 0, len(props))
	for _, p := range props {
		ps := governance.ProposalState{Proposal: governance.Proposal{
			ID:           p.ID,
			Type:         governance.ProposalType(p.Type),
			CID:          p.CID,
			FileName:     p.FileName,
			FileSize:     p.FileSize,
			Proposer:     p.Proposer,
			YesVotes:     p.YesVotes,
			NoVotes:      p.NoVotes,
			VotingPeriod: time.Duration(p.VotingSeconds) * time.Second,
			CreatedAt:    p.CreatedAt.UTC(),
			VotingEnd:    p.VotingEnd.UTC(),
			Executed:     p.Executed,
		}}
		for _, v := range p.Votes {
			ps.Voters = append(ps.Voters, v.Voter)
		}
		if ps.Voters == nil {
			ps.Voters = []string{}
		}
		st.Proposals = append(st.Proposals, ps)
	}

	var grants []types.AccessGrant
	if err := db.Find(&grants).Error; err != nil {
		return st, false, fmt.Errorf("load access grants: %w", err)
	}
	st.Access = make(map[string]map[string]bool)
	for _, g := range grants {
		if st.Access[g.CID] == nil {
			st.Access[g.CID] = make(map[string]bool)
		}
		st.Access[g.CID][g.Address] = true
	}

	var public []types.PublicCID
	if err := db.Find(&public).Error; err != nil {
		return st, false, fmt.Errorf("load public cids: %w", err)
	}
	st.PublicCIDs = make(map[string]bool, len(public))
	for _, p := range public {
		st.PublicCIDs[p.CID] = true
	}
	return st, true, nil
}

// Init records the founding admin.
func (s *Store) Init(ctx context.Context, admin string) error {
	err := s.db.WithContext(ctx).Create(&types.Member{Address: admin, IsAdmin: true}).Error
	if err != nil {
		return fmt.Errorf("init admin: %w", err)
	}
	return nil
}

func (s *Store) SaveMember(ctx context.Context, addr string, member bool) error {
	db := s.db.WithContext(ctx)
	var err error
	if member {
		err = db.Create(&types.Member{Address: addr}).Error
	} else {
		err = db.Where("address = ? AND is_admin = ?", addr, false).Delete(&types.Member{}).Error
	}
	if err != nil {
		return fmt.Errorf("save member %s: %w", addr, err)
	}
	return nil
}

func (s *Store) SaveProposal(ctx context.Context, p governance.Proposal) error {
	row := types.Proposal{
		ID:            p.ID,
		Type:          uint8(p.Type),
		CID:           p.CID,
		FileName:      p.FileName,
		FileSize:      p.FileSize,
		Proposer:      p.Proposer,
		VotingSeconds: int64(p.VotingPeriod / time.Second),
		VotingEnd:     p.VotingEnd,
		CreatedAt:     p.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save proposal %d: %w", p.ID, err)
	}
	return nil
}

// SaveVote stores the ballot and the proposal's updated tallies.
func (s *Store) SaveVote(ctx context.Context, p governance.Proposal, voter string, support bool, at time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&types.Vote{ProposalID: p.ID, Voter: voter, Support: support, CreatedAt: at}).Error; err != nil {
			return err
		}
		return tx.Model(&types.Proposal{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"yes_votes": p.YesVotes,
			"no_votes":  p.NoVotes,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("save vote on %d: %w", p.ID, err)
	}
	return nil
}

// SaveExecution flips the executed flag and applies the access effect.
func (s *Store) SaveExecution(ctx context.Context, eff governance.Effect, at time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Proposal{}).
			Where("id = ? AND executed = ?", eff.ProposalID, false).
			Update("executed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("proposal %d not pending", eff.ProposalID)
		}

		switch eff.Type {
		case governance.Upload:
			for _, addr := range eff.Granted {
				g := types.AccessGrant{CID: eff.CID, Address: addr, ProposalID: eff.ProposalID, CreatedAt: at}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&g).Error; err != nil {
					return err
				}
			}
		case governance.Delete:
			if err := tx.Where("cid = ?", eff.CID).Delete(&types.AccessGrant{}).Error; err != nil {
				return err
			}
			if err := tx.Where("cid = ?", eff.CID).Delete(&types.PublicCID{}).Error; err != nil {
				return err
			}
		case governance.Share:
			p := types.PublicCID{CID: eff.CID, ProposalID: eff.ProposalID, CreatedAt: at}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save execution of %d: %w", eff.ProposalID, err)
	}
	return nil
}
