// Package secret resolves credential references from configuration into
// usable values. Adapter API keys and webhook bearer tokens are written in
// config as URIs ("env://RELAY_FAST_CHAT_KEY") or as plain static strings;
// resolution routes on the scheme.
package secret

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Resolver retrieves a credential value for a scheme-stripped path.
type Resolver interface {
	// Resolve returns the value for the given path.
	Resolve(ctx context.Context, path string) (string, error)

	// Close releases any resources held by the resolver.
	Close() error
}

// Manager routes credential references to resolvers by URI scheme. A
// reference without a scheme is returned verbatim, so static tokens in
// config keep working.
type Manager struct {
	resolvers map[string]Resolver
	mu        sync.RWMutex
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{resolvers: make(map[string]Resolver)}
}

// Register installs a resolver for a scheme (e.g. "env").
func (m *Manager) Register(scheme string, r Resolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[scheme] = r
}

// Resolve turns a credential reference into its value.
func (m *Manager) Resolve(ctx context.Context, ref string) (string, error) {
	scheme, path, ok := strings.Cut(ref, "://")
	if !ok {
		// No scheme means a static credential.
		return ref, nil
	}

	m.mu.RLock()
	r, found := m.resolvers[scheme]
	m.mu.RUnlock()

	if !found {
		return "", fmt.Errorf("no secret resolver registered for scheme %q", scheme)
	}
	return r.Resolve(ctx, path)
}

// Close closes all registered resolvers.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []string
	for scheme, r := range m.resolvers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", scheme, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close secret resolvers: %s", strings.Join(errs, "; "))
	}
	return nil
}
