package httpapi

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ETag returns the strong entity tag of a response body.
func ETag(body []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
}

// matchesETag reports whether an If-None-Match header value names etag.
// Comparison is weak: a W/ prefix on either side is ignored.
func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	if strings.TrimSpace(header) == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == want {
			return true
		}
	}
	return false
}
