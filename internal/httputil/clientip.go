// Package httputil holds request helpers shared by the streaming and
// control handlers.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP extracts the client IP address from the request.
// When trustProxy is true, the first X-Forwarded-For entry and then
// X-Real-IP are consulted before RemoteAddr. Header values that do not
// parse as an IP address are ignored.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return addr.Unmap().String()
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
				return addr.Unmap().String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LimitKey returns the key used to account a client against per-IP limits.
// IPv6 clients are grouped by /64, since a single host commonly controls a
// whole prefix. Unparseable input is returned unchanged.
func LimitKey(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	addr = addr.Unmap()
	if addr.Is4() {
		return addr.String()
	}
	prefix, err := addr.Prefix(64)
	if err != nil {
		return addr.String()
	}
	return prefix.String()
}
