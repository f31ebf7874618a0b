package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a credential reference cannot be resolved.
var ErrSecretNotFound = errors.New("secret not found")

// SecretResolver turns a credential reference into its value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvSecrets resolves "env:NAME" (or a bare NAME) from the process
// environment.
type EnvSecrets struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Resolve implements SecretResolver.
func (s EnvSecrets) Resolve(_ context.Context, ref string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(ref), "env:")
	if name == "" {
		return "", fmt.Errorf("%w: empty reference", ErrSecretNotFound)
	}
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return v, nil
}
