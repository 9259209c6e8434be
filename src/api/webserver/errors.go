package webserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/filedao/src/api/dao"
	"github.com/stake-plus/filedao/src/governance"
)

// errorCodes are the stable names clients translate into messages.
var errorCodes = []struct {
	err  error
	code string
}{
	{governance.ErrUnauthorized, "Unauthorized"},
	{governance.ErrCannotRemoveAdmin, "CannotRemoveAdmin"},
	{governance.ErrAlreadyMember, "AlreadyMember"},
	{governance.ErrNotAMember, "NotAMember"},
	{governance.ErrAlreadyVoted, "AlreadyVoted"},
	{governance.ErrAlreadyExecuted, "AlreadyExecuted"},
	{governance.ErrVotingEnded, "VotingEnded"},
	{governance.ErrNotPassed, "NotPassed"},
	{governance.ErrInvalidVotingPeriod, "InvalidVotingPeriod"},
	{governance.ErrInvalidProposalType, "InvalidProposalType"},
	{governance.ErrProposalNotFound, "ProposalNotFound"},
	{dao.ErrNothingToSync, "NothingToSync"},
	{dao.ErrSyncInProgress, "SyncInProgress"},
}

func errorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, governance.ErrProposalNotFound):
		return http.StatusNotFound
	case errors.Is(err, dao.ErrNothingToSync), errors.Is(err, dao.ErrSyncInProgress):
		return http.StatusConflict
	}
	switch governance.KindOf(err) {
	case governance.KindAuthorization:
		return http.StatusForbidden
	case governance.KindConflict, governance.KindTemporal:
		return http.StatusConflict
	case governance.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondErr(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"err": "internal error"})
		return
	}
	c.JSON(status, gin.H{"err": err.Error(), "code": errorCode(err)})
}
