package http

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	userIDHeader      = "X-User-ID"
	idempotencyHeader = "Idempotency-Key"
)

// userID reads the authenticated caller. Authentication itself happens in
// front of this service; the header is trusted as-is.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(userIDHeader))
	id, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil || id <= 0 {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing or invalid "+userIDHeader+" header")
		return 0, false
	}
	return id, true
}
