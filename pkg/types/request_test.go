package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atelierhq/relay/pkg/errors"
)

func TestParseRequestType(t *testing.T) {
	tests := []struct {
		in   string
		want RequestType
	}{
		{"chat_simple", TypeChatSimple},
		{"chat_deep", TypeChatDeep},
		{"image", TypeImage},
		{"video", TypeVideo},
		{"search", TypeSearch},
		{"", TypeUnknown},
		{"CHAT_SIMPLE", TypeUnknown},
		{"crm_sync", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRequestType(tt.in))
		})
	}
}

func TestRequestType_Valid(t *testing.T) {
	assert.True(t, TypeChatSimple.Valid())
	assert.True(t, TypeSearch.Valid())
	assert.False(t, TypeUnknown.Valid())
	assert.False(t, RequestType("bogus").Valid())
}

func TestRequest_Validate(t *testing.T) {
	valid := &Request{Type: TypeChatSimple, Prompt: "Hello", QualityHint: QualityLow}
	assert.NoError(t, valid.Validate())

	t.Run("nil request", func(t *testing.T) {
		var r *Request
		assert.Error(t, r.Validate())
	})

	t.Run("missing prompt", func(t *testing.T) {
		r := &Request{Type: TypeChatSimple}
		assert.Error(t, r.Validate())
	})

	t.Run("missing type", func(t *testing.T) {
		r := &Request{Prompt: "Hello"}
		assert.Error(t, r.Validate())
	})

	t.Run("bad quality hint", func(t *testing.T) {
		r := &Request{Type: TypeChatSimple, Prompt: "Hello", QualityHint: "ultra"}
		assert.Error(t, r.Validate())
	})

	t.Run("empty quality hint allowed", func(t *testing.T) {
		r := &Request{Type: TypeChatSimple, Prompt: "Hello"}
		assert.NoError(t, r.Validate())
	})

	t.Run("negative timeout", func(t *testing.T) {
		r := &Request{Type: TypeChatSimple, Prompt: "Hello", TimeoutMs: -1}
		assert.Error(t, r.Validate())
	})
}

func TestRequest_Timeout(t *testing.T) {
	r := &Request{TimeoutMs: 1500}
	assert.Equal(t, 1500*time.Millisecond, r.Timeout())
}

func TestResult_OK(t *testing.T) {
	ok := &Result{Content: "Hi there", ProviderID: "fast-chat"}
	assert.True(t, ok.OK())

	failed := &Result{Error: errors.NewTimeoutError("fast-chat", "slow")}
	assert.False(t, failed.OK())

	var nilResult *Result
	assert.False(t, nilResult.OK())
}
