// Package adapter defines the uniform call interface that upstream providers
// must satisfy, and the binding table mapping request types to adapters.
// Concrete adapters are thin HTTP wrappers; their wire formats are their own
// business, but the errors they return must be classifiable by pkg/errors.
package adapter

import (
	"context"
	"fmt"
	"time"

	relayerrors "github.com/atelierhq/relay/pkg/errors"
	"github.com/atelierhq/relay/pkg/types"
)

// CallOptions carries per-call parameters beyond the prompt.
type CallOptions struct {
	Quality types.QualityHint
	Timeout time.Duration
}

// Adapter is the uniform async call interface over one upstream provider.
type Adapter interface {
	// Name returns the provider identifier (e.g. "fast-chat").
	Name() string

	// Call executes one generation and returns the produced text. Errors
	// should be *errors.RouteError so the resilience layer can classify
	// them; anything else is treated as transient.
	Call(ctx context.Context, prompt string, opts CallOptions) (string, error)
}

// Bindings is the static lookup table from request type to adapter, with a
// premium override slot used when the quality hint is high. It is read-only
// at routing time; mutation happens only during construction.
type Bindings struct {
	byType  map[types.RequestType]Adapter
	premium Adapter
}

// NewBindings creates an empty binding table.
func NewBindings() *Bindings {
	return &Bindings{byType: make(map[types.RequestType]Adapter)}
}

// Bind maps a request type to an adapter. Returns an error for types outside
// the closed set so misconfiguration fails at startup, not at routing time.
func (b *Bindings) Bind(t types.RequestType, a Adapter) error {
	if !t.Valid() {
		return fmt.Errorf("cannot bind unknown request type %q", t)
	}
	if a == nil {
		return fmt.Errorf("cannot bind nil adapter for type %q", t)
	}
	b.byType[t] = a
	return nil
}

// SetPremium sets the adapter used for quality-high requests regardless of
// the type-based default.
func (b *Bindings) SetPremium(a Adapter) {
	b.premium = a
}

// Resolve selects an adapter for the given type and quality hint. The
// quality-based override always wins over the type-based default. An unknown
// or unbound type resolves to a terminal configuration error.
func (b *Bindings) Resolve(t types.RequestType, quality types.QualityHint) (Adapter, error) {
	if quality == types.QualityHigh && b.premium != nil {
		return b.premium, nil
	}
	if !t.Valid() {
		return nil, relayerrors.NewConfigurationError("", fmt.Sprintf("unknown request type %q", t))
	}
	a, ok := b.byType[t]
	if !ok {
		return nil, relayerrors.NewConfigurationError("", fmt.Sprintf("no adapter bound for request type %q", t))
	}
	return a, nil
}

// Types returns the bound request types.
func (b *Bindings) Types() []types.RequestType {
	out := make([]types.RequestType, 0, len(b.byType))
	for t := range b.byType {
		out = append(out, t)
	}
	return out
}
