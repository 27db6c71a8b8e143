package ulet

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// cacheDirectives are the Cache-Control response directives the client
// honors when WithHeaderTTL is enabled.
type cacheDirectives struct {
	noStore bool
	noCache bool
	maxAge  *time.Duration
}

func parseCacheControl(header string) cacheDirectives {
	var d cacheDirectives
	if header == "" {
		return d
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "no-store":
			d.noStore = true
		case part == "no-cache":
			d.noCache = true
		case strings.HasPrefix(part, "max-age="):
			value := strings.Trim(strings.TrimPrefix(part, "max-age="), "\"")
			if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
				maxAge := time.Duration(seconds) * time.Second
				d.maxAge = &maxAge
			}
		}
	}
	return d
}

// headerTTL inspects a successful response's Cache-Control header and
// returns the TTL to use instead of fallback. The second return is false
// when the response must not be stored at all.
func headerTTL(header http.Header, fallback time.Duration) (time.Duration, bool) {
	d := parseCacheControl(header.Get("Cache-Control"))
	if d.noStore || d.noCache {
		return 0, false
	}
	if d.maxAge != nil {
		if *d.maxAge == 0 {
			return 0, false
		}
		return *d.maxAge, true
	}
	return fallback, true
}
