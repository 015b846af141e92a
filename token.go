package foanalytics

import (
	"context"
	"os"
)

// ============================================================================
// Credential Provider Boundary
// ============================================================================

// TokenProvider supplies the credential that authenticates the realtime
// connection. Returning an empty token with a nil error means "cannot
// connect yet" — the client declines to connect silently and the caller is
// expected to call Connect again once authenticated. Errors are treated the
// same way, logged at debug level.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken returns a provider that always yields the given token.
func StaticToken(token string) TokenProvider {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// TokenFromEnv returns a provider that reads the token from an environment
// variable on every connection attempt.
func TokenFromEnv(key string) TokenProvider {
	return func(context.Context) (string, error) {
		return os.Getenv(key), nil
	}
}
