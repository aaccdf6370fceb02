package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dailydev/internal/adapter/external/twilio"
)

// RequestLogger пишет одну строку на запрос; уровень зависит от статуса.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []any{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Debug("http request", fields...)
		}
	}
}

// TwilioSignature отклоняет запросы с неверной X-Twilio-Signature.
// publicURL заменяет схему и хост, которые видит сервис за прокси.
func TwilioSignature(authToken, publicURL string, log *slog.Logger) gin.HandlerFunc {
	publicURL = strings.TrimRight(publicURL, "/")
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		full := publicURL + c.Request.URL.RequestURI()
		if publicURL == "" {
			scheme := "http"
			if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
				scheme = "https"
			}
			full = scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
		}
		if !twilio.ValidSignature(authToken, full, c.Request.PostForm, c.GetHeader(twilio.SignatureHeader)) {
			log.Warn("twilio signature mismatch", "url", full)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
