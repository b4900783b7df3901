// Package gate validates target URLs before the pipeline issues any
// outbound call: syntactic checks first, then resolution of the host and
// rejection of addresses that are not publicly routable. Without the second
// step the service is a confused deputy that can be pointed at internal
// infrastructure.
//
// Resolution-to-capture is not atomic: a host can re-resolve to a private
// address between the gate check and the capture. That residual risk is
// accepted on the assumption that the capture backend is itself sandboxed.
package gate

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/siteroast/siteroast/internal/roast"
)

// MaxURLLength bounds accepted input.
const MaxURLLength = 2048

const notPublicMsg = "URL is not publicly accessible"

// Resolver is the DNS lookup seam; *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Gate checks URLs syntactically and against SSRF-sensitive ranges.
type Gate struct {
	resolver Resolver
}

// New creates a Gate backed by the default system resolver.
func New() *Gate {
	return &Gate{resolver: net.DefaultResolver}
}

// NewWithResolver creates a Gate with an injected resolver (for tests).
func NewWithResolver(r Resolver) *Gate {
	return &Gate{resolver: r}
}

// Check validates rawURL. It returns an InputValidation failure for
// syntactic problems and a PrivacyViolation failure when the host fails to
// resolve (fail closed) or resolves to any non-public address.
func (g *Gate) Check(ctx context.Context, rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return roast.NewFailure(roast.KindInputValidation, "URL required", nil)
	}
	if len(rawURL) > MaxURLLength {
		return roast.NewFailure(roast.KindInputValidation, "URL too long", nil)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return roast.NewFailure(roast.KindInputValidation, "invalid URL format", err)
	}

	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if !isPublic(ip) {
			return roast.NewFailure(roast.KindPrivacyViolation, notPublicMsg, fmt.Errorf("literal address %s is not public", ip))
		}
		return nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return roast.NewFailure(roast.KindPrivacyViolation, notPublicMsg, fmt.Errorf("resolve %s: %w", host, err))
	}
	if len(addrs) == 0 {
		return roast.NewFailure(roast.KindPrivacyViolation, notPublicMsg, fmt.Errorf("resolve %s: no addresses", host))
	}
	for _, addr := range addrs {
		if !isPublic(addr.IP) {
			// Never echo the resolved address back to the caller.
			return roast.NewFailure(roast.KindPrivacyViolation, notPublicMsg, fmt.Errorf("%s resolves to non-public %s", host, addr.IP))
		}
	}
	return nil
}

func isPublic(ip net.IP) bool {
	switch {
	case ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsMulticast(),
		ip.IsPrivate():
		return false
	}
	return true
}
