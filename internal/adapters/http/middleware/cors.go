package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowHeaders = "Content-Type, Content-Length, Authorization, Accept, Origin, X-Requested-With, " +
		HeaderRequestID + ", " + HeaderCorrelationID
	corsAllowMethods  = "GET, POST, DELETE, OPTIONS"
	corsExposeHeaders = HeaderRequestID + ", " + HeaderCorrelationID + ", X-Trace-ID"
	corsMaxAgeSeconds = 600
)

// CORS returns middleware that lets the listed browser origins call the API.
// A "*" entry allows any origin. Preflight requests end here with 204 so
// they never reach the auth guard.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	anyOrigin := false

	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")

		switch o {
		case "":
		case "*":
			anyOrigin = true
		default:
			allowed[o] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()

		if origin != "" {
			if _, ok := allowed[origin]; ok || anyOrigin {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			}
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAgeSeconds))
			c.AbortWithStatus(http.StatusNoContent)

			return
		}

		c.Next()
	}
}
