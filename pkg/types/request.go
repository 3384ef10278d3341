// Package types defines the core request and result types shared across the
// routing layer. Requests are immutable once submitted; results always carry
// a structured error instead of throwing past the routing boundary.
package types

import (
	"fmt"
	"time"

	"github.com/atelierhq/relay/pkg/errors"
)

// RequestType identifies what kind of generation is being asked for. It is a
// closed set: anything outside it parses to TypeUnknown, which routes to a
// well-defined failure instead of a silent nil lookup.
type RequestType string

const (
	TypeChatSimple RequestType = "chat_simple"
	TypeChatDeep   RequestType = "chat_deep"
	TypeImage      RequestType = "image"
	TypeVideo      RequestType = "video"
	TypeSearch     RequestType = "search"
	TypeUnknown    RequestType = "unknown"
)

// knownTypes is the authoritative set of routable request types.
var knownTypes = map[RequestType]struct{}{
	TypeChatSimple: {},
	TypeChatDeep:   {},
	TypeImage:      {},
	TypeVideo:      {},
	TypeSearch:     {},
}

// ParseRequestType maps a wire string to a RequestType, returning TypeUnknown
// for anything not in the closed set.
func ParseRequestType(s string) RequestType {
	t := RequestType(s)
	if _, ok := knownTypes[t]; ok {
		return t
	}
	return TypeUnknown
}

// Valid reports whether the type is routable.
func (t RequestType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// QualityHint is a coarse hint for provider selection. High quality routes to
// the premium (slower, more capable) provider regardless of the type default.
type QualityHint string

const (
	QualityLow    QualityHint = "low"
	QualityMedium QualityHint = "medium"
	QualityHigh   QualityHint = "high"
)

// Request represents a single generation request to be routed.
type Request struct {
	Type        RequestType `json:"type"`
	Prompt      string      `json:"prompt"`
	QualityHint QualityHint `json:"quality_hint,omitempty"`

	// TimeoutMs optionally overrides the per-attempt timeout for this
	// request. Zero means the configured default applies.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`
}

// Timeout returns the per-attempt timeout override as a duration.
func (r *Request) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// Validate checks the request for structural errors before routing.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("request is nil")
	}
	if r.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if r.Type == "" {
		return fmt.Errorf("type is required")
	}
	switch r.QualityHint {
	case "", QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("invalid quality hint: %s", r.QualityHint)
	}
	if r.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms cannot be negative")
	}
	return nil
}

// Result is the structured outcome of a routed request or webhook dispatch.
// Failures are data here: a failed route fills Error and leaves Content empty,
// so callers always get something renderable.
type Result struct {
	Content         string             `json:"content,omitempty"`
	ProviderID      string             `json:"provider_id,omitempty"`
	Cached          bool               `json:"cached"`
	ExecutionTimeMs int64              `json:"execution_time_ms"`
	Error           *errors.RouteError `json:"error,omitempty"`
}

// OK reports whether the routed call produced usable content.
func (r *Result) OK() bool {
	return r != nil && r.Error == nil
}
