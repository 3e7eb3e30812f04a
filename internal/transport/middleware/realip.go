package middleware

import (
	"net/http"
	"net/netip"
	"strings"
)

const (
	forwardedForHeader = "X-Forwarded-For"
	realIPHeader       = "X-Real-IP"
)

// TrustedRealIP replaces RemoteAddr with the forwarded client address, but
// only when the socket peer is one of the trusted proxies. Requests from any
// other peer keep their socket address whatever headers they carry.
func TrustedRealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 {
				if peer, ok := peerAddr(r.RemoteAddr); ok && isTrusted(trusted, peer) {
					if client, ok := forwardedClient(r, trusted); ok {
						r.RemoteAddr = client.String()
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClient walks X-Forwarded-For from the right, skipping trusted hops,
// so entries a client prepended itself are never picked.
func forwardedClient(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	if xff := r.Header.Values(forwardedForHeader); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		var last netip.Addr
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			addr = addr.Unmap()
			if !isTrusted(trusted, addr) {
				return addr, true
			}
			last = addr
		}
		if last.IsValid() {
			return last, true
		}
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get(realIPHeader))); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

func peerAddr(remote string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remote); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

func isTrusted(trusted []netip.Prefix, addr netip.Addr) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
