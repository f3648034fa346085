package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address: the first valid X-Forwarded-For hop,
// then X-Real-IP, then RemoteAddr. Ports are stripped.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := parseHost(hop); ip != "" {
			return ip
		}
	}
	if ip := parseHost(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := parseHost(r.RemoteAddr); ip != "" {
		return ip
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func parseHost(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		value = host
	}
	value = strings.Trim(value, "[]")
	if net.ParseIP(value) == nil {
		return ""
	}
	return value
}
