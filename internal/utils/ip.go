package utils

import (
	"net"
	"net/http"
	"strings"
)

// IsAllowedIP reports whether ip falls inside one of the allowed CIDR blocks.
// A bare address without a mask is treated as a single-host block.
func IsAllowedIP(ip string, allowedCIDRs []string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}

	for _, cidr := range allowedCIDRs {
		if !strings.Contains(cidr, "/") {
			if other := net.ParseIP(cidr); other != nil && other.Equal(parsed) {
				return true
			}
			continue
		}
		_, netblock, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if netblock.Contains(parsed) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller address. Forwarding headers are honoured only
// when the direct peer is one of trustedProxies; X-Forwarded-For is then walked
// from the right and the first hop that is not itself a trusted proxy wins.
func ClientIP(r *http.Request, trustedProxies []string) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if len(trustedProxies) == 0 || !IsAllowedIP(peer, trustedProxies) {
		return peer
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !IsAllowedIP(hop, trustedProxies) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}
