// internal/server/helpers.go
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"regexp"
	"strings"
)

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	uuidRe    = regexp.MustCompile(`^[0-9a-f-]{36}$`)
	htmlTagRe = regexp.MustCompile(`<[^>]*>`)
)

const maxNameLength = 80

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": message})
}

// clientIP takes the first X-Forwarded-For hop, falling back to the socket
// peer. "unknown" keeps hashing total for requests with neither.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}

// hashIP stores a non-reversible digest instead of the raw address. The
// truncated digest is plenty for rate limiting and keeps PII out of the
// database.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return "ip_" + hex.EncodeToString(sum[:])[:16]
}

// sanitizeInput strips HTML tags and trims; display-name fields also get a
// hard length cap.
func sanitizeInput(s string, maxLen int) string {
	s = strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func validUUID(id string) bool {
	return uuidRe.MatchString(id)
}

func validEmail(email string) bool {
	return emailRe.MatchString(email)
}
