package types

import "time"

// DAO members
type Member struct {
	Address   string `gorm:"primaryKey;size:128"`
	IsAdmin   bool   `gorm:"default:false"`
	CreatedAt time.Time
}

// File proposals
type Proposal struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type          uint8  `gorm:"not null"` // 0 upload, 1 delete, 2 share
	CID           string `gorm:"column:cid;size:128;index;not null"`
	FileName      string `gorm:"size:255"`
	FileSize      uint64 `gorm:"default:0"`
	Proposer      string `gorm:"size:128;not null"`
	YesVotes      uint64 `gorm:"default:0"`
	NoVotes       uint64 `gorm:"default:0"`
	VotingSeconds int64  `gorm:"not null"`
	VotingEnd     time.Time
	Executed      bool `gorm:"default:false"`
	CreatedAt     time.Time
	Votes         []Vote `gorm:"foreignKey:ProposalID"`
}

// Member votes, one per (proposal, voter)
type Vote struct {
	ProposalID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Voter      string `gorm:"primaryKey;size:128"`
	Support    bool   `gorm:"not null"`
	CreatedAt  time.Time
}

// Per-address access granted by executed uploads
type AccessGrant struct {
	CID        string `gorm:"column:cid;primaryKey;size:128"`
	Address    string `gorm:"primaryKey;size:128"`
	ProposalID uint64 `gorm:"index"`
	CreatedAt  time.Time
}

func (AccessGrant) TableName() string { return "access_grants" }

// Content made public by executed shares
type PublicCID struct {
	CID        string `gorm:"column:cid;primaryKey;size:128"`
	ProposalID uint64 `gorm:"index"`
	CreatedAt  time.Time
}

func (PublicCID) TableName() string { return "public_cids" }

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}

// AllModels lists every table the API migrates.
var AllModels = []interface{}{
	&Member{}, &Proposal{}, &Vote{},
	&AccessGrant{}, &PublicCID{}, &Setting{},
}
