package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/filedao/src/api/dao"
)

// AdminMiddleware rejects callers that are not the DAO admin before the
// request body is read.
func AdminMiddleware(svc *dao.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !svc.IsAdmin(c.GetString("addr")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"err": "admin access required", "code": "Unauthorized"})
			return
		}
		c.Next()
	}
}
