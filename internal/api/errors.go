package api

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oxzoid/hookmarket/internal/apierr"
)

// respondErr writes the spec §6 `{error, details?}` error body, translating
// a classified *apierr.Error to its carried HTTP status.
func respondErr(c *gin.Context, err error) {
	if apiErr, ok := apierr.As(err); ok {
		body := gin.H{"error": string(apiErr.Kind)}
		switch {
		case apiErr.Err != nil:
			body["details"] = apiErr.Err.Error()
		case apiErr.Message != "":
			body["details"] = apiErr.Message
		}
		c.JSON(apiErr.Status, body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": err.Error()})
}

func decodeHexSignature(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
