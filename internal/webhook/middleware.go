package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vocero/platform/config"
	"vocero/platform/logger"
)

// TwilioSignature validates the X-Twilio-Signature header on carrier
// webhooks: HMAC-SHA1 over the public URL plus the sorted form parameters,
// keyed with the account auth token. Validation is skipped when no token is
// configured, which only happens in tests.
func TwilioSignature(cfg config.WebhookConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := cfg.GetTwilioAuthToken()
		if token == "" {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		url := strings.TrimRight(cfg.GetAppBaseURL(), "/") + c.Request.URL.RequestURI()
		keys := make([]string, 0, len(c.Request.PostForm))
		for k := range c.Request.PostForm {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		mac := hmac.New(sha1.New, []byte(token))
		mac.Write([]byte(url))
		for _, k := range keys {
			mac.Write([]byte(k))
			mac.Write([]byte(c.Request.PostForm.Get(k)))
		}
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		got := c.GetHeader("X-Twilio-Signature")
		if !hmac.Equal([]byte(want), []byte(got)) {
			log.HTTPRequest(c.Request.Method, c.Request.URL.Path, http.StatusForbidden, 0, c.ClientIP())
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

const engineSignatureTolerance = 30 * time.Minute

// EngineSignature validates the voice engine's webhook signature header
// ("t=<unix>,v0=<hex hmac-sha256(secret, t.body)>"). Skipped when no
// secret is configured.
func EngineSignature(cfg config.WebhookConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := cfg.GetEngineWebhookSecret()
		if secret == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		header := c.GetHeader("ElevenLabs-Signature")
		if !validEngineSignature(header, secret, body, time.Now()) {
			log.HTTPRequest(c.Request.Method, c.Request.URL.Path, http.StatusForbidden, 0, c.ClientIP())
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func validEngineSignature(header, secret string, body []byte, now time.Time) bool {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			ts = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v0="):
			sig = strings.TrimPrefix(part, "v0=")
		}
	}
	if ts == "" || sig == "" {
		return false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	sent := time.Unix(unix, 0)
	if sent.Before(now.Add(-engineSignatureTolerance)) || sent.After(now.Add(engineSignatureTolerance)) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}
