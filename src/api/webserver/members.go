package webserver

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/filedao/src/api/dao"
)

type Members struct{ svc *dao.Service }

func NewMembers(svc *dao.Service) Members { return Members{svc: svc} }

func (m Members) List(c *gin.Context) {
	jsonWithETag(c, gin.H{
		"admin":   m.svc.Admin(),
		"count":   m.svc.MemberCount(),
		"members": m.svc.Members(),
	})
}

func (m Members) Get(c *gin.Context) {
	addr, err := NormalizeAddress(c.Param("addr"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": addr,
		"member":  m.svc.IsMember(addr),
		"admin":   m.svc.IsAdmin(addr),
	})
}

func (m Members) Add(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	addr, err := NormalizeAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if err := m.svc.AddMember(c, c.GetString("addr"), addr); err != nil {
		respondErr(c, err)
		return
	}
	log.Printf("Admin %s added member %s", c.GetString("addr"), addr)
	c.JSON(http.StatusCreated, gin.H{"address": addr, "count": m.svc.MemberCount()})
}

func (m Members) Remove(c *gin.Context) {
	addr, err := NormalizeAddress(c.Param("addr"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if err := m.svc.RemoveMember(c, c.GetString("addr"), addr); err != nil {
		respondErr(c, err)
		return
	}
	log.Printf("Admin %s removed member %s", c.GetString("addr"), addr)
	c.JSON(http.StatusOK, gin.H{"address": addr, "count": m.svc.MemberCount()})
}
