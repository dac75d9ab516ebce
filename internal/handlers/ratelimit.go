package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RateLimiter is the minimal interface required to guard the admin endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

// allowRequest checks the caller's rate-limit budget, keyed by client IP and
// scope. A nil limiter disables limiting.
func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}

	ip := clientIP(r)
	if scope == "" {
		return limiter.Allow(ip)
	}
	return limiter.Allow(fmt.Sprintf("%s:%s", scope, ip))
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
