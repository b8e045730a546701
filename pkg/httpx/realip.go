package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const ctxKeyClientIP ctxKey = "client_ip"

// TrustedProxies lists the peers whose forwarding headers are believed.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies reads a comma separated list of CIDRs or bare
// addresses. An empty string trusts nobody.
func ParseTrustedProxies(s string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("httpx: trusted proxy %q: %w", part, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("httpx: trusted proxy %q: %w", part, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Contains reports whether ip is one of the trusted proxies.
func (t TrustedProxies) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RealIPMiddleware resolves the client address once per request. The
// X-Forwarded-For chain is walked from the right while hops are trusted
// proxies; X-Real-IP is used only when that header is absent. A request
// whose peer is not a trusted proxy is keyed on its peer address and its
// headers are ignored.
func RealIPMiddleware(trusted TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClientIP, ip)))
		})
	}
}

func resolveClientIP(r *http.Request, trusted TrustedProxies) string {
	peer := remoteHost(r)
	if !trusted.Contains(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			client = hop
			if !trusted.Contains(hop) {
				break
			}
		}
		return client
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

func remoteHost(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ClientIP returns the address resolved by RealIPMiddleware, or the peer
// address when the middleware is not installed.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ctxKeyClientIP).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}
