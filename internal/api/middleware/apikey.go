package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openequity/Settlement-Backend/internal/api/response"
)

// timeTokenWindow bounds how old a time token may be before it is rejected.
const timeTokenWindow = 5 * time.Minute

// APIKeyMiddleware authenticates machine-to-machine callers (the transfer
// provider's webhook delivery, internal tooling) with a shared API key plus
// a signed time token that limits replay of captured headers.
//
// Expected headers:
//   - X-API-Key: the shared key, compared against INTERNAL_API_KEY
//   - X-Time-Token: GenerateTimeToken output, valid for five minutes
//
// Returns 401 Unauthorized on any missing or invalid credential and
// 500 Internal Server Error when INTERNAL_API_KEY is not configured.
func APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectedKey := os.Getenv("INTERNAL_API_KEY")
		if expectedKey == "" {
			response.RespondError(w, http.StatusInternalServerError, "authentication failure", "Authentication not loaded")
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			response.RespondError(w, http.StatusUnauthorized, "authentication failure", "Missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expectedKey)) != 1 {
			response.RespondError(w, http.StatusUnauthorized, "authentication failure", "Invalid API key")
			return
		}

		timeToken := r.Header.Get("X-Time-Token")
		if timeToken == "" {
			response.RespondError(w, http.StatusUnauthorized, "authentication failure", "Missing Time token")
			return
		}
		if !validateTimeToken(timeToken, expectedKey) {
			response.RespondError(w, http.StatusUnauthorized, "authentication failure", "Time token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GenerateTimeToken produces a time token for the given API key: the current
// unix timestamp signed with an HMAC keyed by the API key.
func GenerateTimeToken(apiKey string) string {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	return fmt.Sprintf("%s.%s", timestamp, signTimestamp(timestamp, apiKey))
}

func signTimestamp(timestamp, apiKey string) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

func validateTimeToken(token, apiKey string) bool {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return false
	}

	unix, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(unix, 0))
	if age > timeTokenWindow || age < -timeTokenWindow {
		return false
	}

	expected := signTimestamp(parts[0], apiKey)
	return hmac.Equal([]byte(parts[1]), []byte(expected))
}
