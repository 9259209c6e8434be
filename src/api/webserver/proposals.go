package webserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/filedao/src/api/dao"
	"github.com/stake-plus/filedao/src/governance"
	"github.com/stake-plus/filedao/src/logging"
)

const defaultVotingPeriod = 300 // seconds

type Proposals struct {
	svc       *dao.Service
	sanitizer *bluemonday.Policy
}

func NewProposals(svc *dao.Service) Proposals {
	return Proposals{svc: svc, sanitizer: bluemonday.StrictPolicy()}
}

type proposalJSON struct {
	ID           uint64 `json:"id"`
	Type         string `json:"type"`
	CID          string `json:"cid"`
	FileName     string `json:"fileName"`
	FileSize     uint64 `json:"fileSize"`
	Proposer     string `json:"proposer"`
	YesVotes     uint64 `json:"yesVotes"`
	NoVotes      uint64 `json:"noVotes"`
	VotingPeriod int64  `json:"votingPeriod"`
	CreatedAt    int64  `json:"createdAt"`
	VotingEnd    int64  `json:"votingEnd"`
	Executed     bool   `json:"executed"`
	Status       string `json:"status"`
	Passed       bool   `json:"passed"`
	TimeLeft     int64  `json:"timeLeft"`
}

func toJSON(pv dao.ProposalView) proposalJSON {
	return proposalJSON{
		ID:           pv.ID,
		Type:         pv.Type.String(),
		CID:          pv.CID,
		FileName:     pv.FileName,
		FileSize:     pv.FileSize,
		Proposer:     pv.Proposer,
		YesVotes:     pv.YesVotes,
		NoVotes:      pv.NoVotes,
		VotingPeriod: int64(pv.VotingPeriod / time.Second),
		CreatedAt:    pv.CreatedAt.Unix(),
		VotingEnd:    pv.VotingEnd.Unix(),
		Executed:     pv.Executed,
		Status:       string(pv.Status),
		Passed:       pv.Passed,
		TimeLeft:     int64(pv.TimeLeft / time.Second),
	}
}

func proposalID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad proposal id"})
		return 0, false
	}
	return id, true
}

// votingPeriod converts a request period in seconds. Values outside the
// allowed range map to zero, which the engine rejects with
// ErrInvalidVotingPeriod after its membership and type checks.
func votingPeriod(secs int64) time.Duration {
	if secs < int64(governance.MinVotingPeriod/time.Second) || secs > int64(governance.MaxVotingPeriod/time.Second) {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (p Proposals) Create(c *gin.Context) {
	var req struct {
		Type         string `json:"type" binding:"required,oneof=upload delete share"`
		CID          string `json:"cid" binding:"required,max=128"`
		FileName     string `json:"fileName" binding:"max=255"`
		FileSize     uint64 `json:"fileSize"`
		VotingPeriod *int64 `json:"votingPeriod"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	typ, err := governance.ParseProposalType(req.Type)
	if err != nil {
		respondErr(c, err)
		return
	}
	secs := int64(defaultVotingPeriod)
	if req.VotingPeriod != nil {
		secs = *req.VotingPeriod
	}

	id, err := p.svc.Propose(c, c.GetString("addr"), dao.ProposeRequest{
		Type:         typ,
		CID:          strings.TrimSpace(req.CID),
		FileName:     strings.TrimSpace(p.sanitizer.Sanitize(req.FileName)),
		FileSize:     req.FileSize,
		VotingPeriod: votingPeriod(secs),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (p Proposals) List(c *gin.Context) {
	status := c.Query("status")
	views := p.svc.Proposals()
	out := make([]proposalJSON, 0, len(views))
	for _, pv := range views {
		if status != "" && string(pv.Status) != status {
			continue
		}
		out = append(out, toJSON(pv))
	}
	jsonWithETag(c, gin.H{"proposals": out, "count": len(views)})
}

func (p Proposals) Get(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	pv, err := p.svc.Proposal(id)
	if err != nil {
		respondErr(c, err)
		return
	}
	voted, _ := p.svc.HasVoted(id, c.GetString("addr"))
	c.JSON(http.StatusOK, gin.H{"proposal": toJSON(pv), "voted": voted})
}

func (p Proposals) Vote(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	var req struct {
		Support *bool `json:"support" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if err := p.svc.Vote(c, c.GetString("addr"), id, *req.Support); err != nil {
		respondErr(c, err)
		return
	}
	pv, _ := p.svc.Proposal(id)
	c.JSON(http.StatusCreated, gin.H{"yesVotes": pv.YesVotes, "noVotes": pv.NoVotes})
}

func (p Proposals) Execute(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	res, err := p.svc.Execute(c, c.GetString("addr"), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	out := gin.H{"executed": true, "synced": res.Synced}
	if res.StorageErr != nil {
		out["storageErr"] = res.StorageErr.Error()
	}
	c.JSON(http.StatusOK, out)
}

func (p Proposals) Sync(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	if err := p.svc.SyncStorage(c, c.GetString("addr"), id); err != nil {
		if logging.IsRateLimit(err) {
			c.JSON(http.StatusTooManyRequests, gin.H{"err": err.Error()})
			return
		}
		if errorStatus(err) == http.StatusInternalServerError {
			c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
			return
		}
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": true})
}
