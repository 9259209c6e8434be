package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/OneOfOne/xxhash"
	"github.com/gin-gonic/gin"
)

// jsonWithETag writes v with an xxhash ETag and answers 304 when the client
// already holds the same body.
func jsonWithETag(c *gin.Context, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		respondErr(c, err)
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(body))
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
