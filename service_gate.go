package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// ServiceKeyStore is the slice of the key store the gate needs.
type ServiceKeyStore interface {
	GetByHash(ctx context.Context, hash string) (*ServiceAPIKey, error)
	Touch(ctx context.Context, id uuid.UUID, now time.Time) error
}

// ServiceResolver resolves the tenant a key belongs to.
type ServiceResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Service, error)
}

// ExemptPaths matches request paths the key gate should skip. Exact paths
// match whole strings; prefixes match by strings.HasPrefix.
type ExemptPaths struct {
	exact    map[string]struct{}
	prefixes []string
}

// DefaultExemptPaths covers browser-facing surfaces that cannot carry a
// service key: the admin and static asset areas and the link landing pages
// for email verification and password reset.
func DefaultExemptPaths() *ExemptPaths {
	return NewExemptPaths(
		[]string{"/verify-email", "/password/reset"},
		[]string{"/admin", "/static"},
	)
}

func NewExemptPaths(exact, prefixes []string) *ExemptPaths {
	e := &ExemptPaths{exact: map[string]struct{}{}}
	for _, path := range exact {
		e.exact[path] = struct{}{}
	}
	e.prefixes = append(e.prefixes, prefixes...)
	return e
}

// Matches reports whether the path is exempt from key checks.
func (e *ExemptPaths) Matches(path string) bool {
	if e == nil {
		return false
	}
	if _, ok := e.exact[path]; ok {
		return true
	}
	for _, prefix := range e.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ServiceKeyGate authenticates calling services by static API key. Raw keys
// are hashed before lookup; the stored record never holds the raw value.
type ServiceKeyGate struct {
	keys     ServiceKeyStore
	services ServiceResolver
	exempt   *ExemptPaths
	logger   Logger
	nowFn    func() time.Time
}

// NewServiceKeyGate returns a new ServiceKeyGate.
func NewServiceKeyGate(keys ServiceKeyStore, services ServiceResolver) *ServiceKeyGate {
	return &ServiceKeyGate{
		keys:     keys,
		services: services,
		exempt:   DefaultExemptPaths(),
		logger:   defLogger{},
		nowFn:    time.Now,
	}
}

func (g *ServiceKeyGate) WithLogger(logger Logger) *ServiceKeyGate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// WithExemptPaths replaces the default exemption set.
func (g *ServiceKeyGate) WithExemptPaths(exempt *ExemptPaths) *ServiceKeyGate {
	if exempt != nil {
		g.exempt = exempt
	}
	return g
}

// WithNow overrides the clock, mainly for tests.
func (g *ServiceKeyGate) WithNow(nowFn func() time.Time) *ServiceKeyGate {
	if nowFn != nil {
		g.nowFn = nowFn
	}
	return g
}

// Exempt reports whether the given request path bypasses the gate.
func (g *ServiceKeyGate) Exempt(path string) bool {
	return g.exempt.Matches(path)
}

// Authenticate resolves the tenant behind a raw API key. A missing key fails
// ErrKeyRequired; an unknown key, a deactivated key, and a deactivated tenant
// all fail ErrInvalidKey so callers cannot probe which of the three it was.
func (g *ServiceKeyGate) Authenticate(ctx context.Context, rawKey string) (*Service, error) {
	if rawKey == "" {
		return nil, ErrKeyRequired
	}

	key, err := g.keys.GetByHash(ctx, HashToken(rawKey))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidKey
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up service key")
	}

	if !key.Active {
		return nil, ErrInvalidKey
	}

	service, err := g.services.GetByID(ctx, key.ServiceID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidKey
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve service for key")
	}

	if !service.Active {
		return nil, ErrInvalidKey
	}

	if err := g.keys.Touch(ctx, key.ID, g.nowFn()); err != nil {
		// stale last_used is not worth failing an authenticated request
		g.logger.Warn("failed to update key last_used_at: %v", err)
	}

	return service, nil
}
