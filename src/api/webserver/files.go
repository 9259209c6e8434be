package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/filedao/src/api/dao"
	"github.com/stake-plus/filedao/src/governance"
)

type Files struct{ svc *dao.Service }

func NewFiles(svc *dao.Service) Files { return Files{svc: svc} }

// Access reports whether ?address= (default: the caller) may read :cid.
func (f Files) Access(c *gin.Context) {
	addr := c.GetString("addr")
	if q := c.Query("address"); q != "" {
		var err error
		if addr, err = NormalizeAddress(q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
			return
		}
	}
	cid := c.Param("cid")
	c.JSON(http.StatusOK, gin.H{
		"cid":     cid,
		"address": addr,
		"access":  f.svc.HasAccess(cid, addr),
	})
}

func (f Files) Shared(c *gin.Context) {
	jsonWithETag(c, gin.H{"cids": f.svc.PublicCIDs()})
}

func (f Files) Deleted(c *gin.Context) {
	deleted := f.svc.DeletedFiles()
	out := make([]gin.H, 0, len(deleted))
	for _, p := range deleted {
		out = append(out, fileEntry(p))
	}
	jsonWithETag(c, gin.H{"files": out})
}

func fileEntry(p governance.Proposal) gin.H {
	return gin.H{
		"proposalId": p.ID,
		"cid":        p.CID,
		"fileName":   p.FileName,
		"proposer":   p.Proposer,
		"votingEnd":  p.VotingEnd.Unix(),
	}
}

func (f Files) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, f.svc.Stats())
}
