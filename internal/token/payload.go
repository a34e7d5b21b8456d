package token

import (
	"fmt"
	"strconv"
	"strings"
)

const startPrefix = "verify_"

// StartPayload is the /start parameter carried by deep links.
func StartPayload(userID int64, token string) string {
	return fmt.Sprintf("%s%d_%s", startPrefix, userID, token)
}

// ParseStartPayload splits verify_<user>_<token>.
func ParseStartPayload(payload string) (userID int64, token string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(payload), startPrefix)
	if !found {
		return 0, "", false
	}
	idPart, tok, found := strings.Cut(rest, "_")
	if !found || tok == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, tok, true
}
