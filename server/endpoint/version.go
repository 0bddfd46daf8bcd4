package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/streamkit/version"
)

// Version returns a handler that reports the resolved build identity.
// version.Info serializes with its own wire names, so the response shape
// follows that struct.
func Version() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, version.GetVersionInfo())
	}
}
