package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvResolver reads credentials from environment variables.
type EnvResolver struct{}

// NewEnvResolver creates an environment variable resolver.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

// Resolve returns the value of the environment variable named by path.
func (*EnvResolver) Resolve(_ context.Context, path string) (string, error) {
	val, ok := os.LookupEnv(path)
	if !ok {
		return "", fmt.Errorf("environment variable %q not set", path)
	}
	return val, nil
}

// Close is a no-op.
func (*EnvResolver) Close() error { return nil }
