package acl

import (
	"context"

	"github.com/kbukum/capdir/auth"
	"github.com/kbukum/capdir/auth/authctx"
	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/logger"
)

var (
	_ discovery.AccessController = AllowAll{}
	_ discovery.AccessController = (*ClaimsPolicy)(nil)
	_ discovery.AccessController = Func(nil)
)

// AllowAll permits every registration.
type AllowAll struct{}

// HasProviderPermission implements discovery.AccessController.
func (AllowAll) HasProviderPermission(context.Context, discovery.DiscoveryEntry) bool { return true }

// Func adapts an ordinary function to discovery.AccessController.
type Func func(ctx context.Context, entry discovery.DiscoveryEntry) bool

// HasProviderPermission implements discovery.AccessController.
func (f Func) HasProviderPermission(ctx context.Context, entry discovery.DiscoveryEntry) bool {
	return f(ctx, entry)
}

// ClaimsPolicy grants registrations covered by the caller's token.
// A context without claims is denied.
type ClaimsPolicy struct {
	log *logger.Logger
}

// NewClaimsPolicy creates a ClaimsPolicy. A nil logger disables logging.
func NewClaimsPolicy(log *logger.Logger) *ClaimsPolicy {
	if log == nil {
		log = logger.NewNop()
	}
	return &ClaimsPolicy{log: log.WithComponent("acl")}
}

// HasProviderPermission implements discovery.AccessController.
func (p *ClaimsPolicy) HasProviderPermission(ctx context.Context, entry discovery.DiscoveryEntry) bool {
	claims, ok := authctx.Get[*auth.Claims](ctx)
	if !ok || claims == nil {
		p.log.Debug("no claims in context", logger.Fields(logger.FieldParticipantID, entry.ParticipantID))
		return false
	}
	if MatchAny(claims.Domains, entry.Domain, entry.InterfaceName) {
		return true
	}
	p.log.Info("registration denied", logger.Fields(
		logger.FieldParticipantID, entry.ParticipantID,
		"subject", claims.Subject,
		"domain", entry.Domain,
		"interface", entry.InterfaceName,
	))
	return false
}
