package accountguard

import (
	"context"

	"github.com/MrEthical07/accountguard/audit"
)

// WithClientIP attaches the caller's address to ctx. Security events emitted
// under ctx carry it as their source address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return audit.WithSourceAddress(ctx, ip)
}

// ClientIPFromContext returns the address set by WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return audit.SourceAddressFromContext(ctx)
}
