// Package secrets resolves the agent's upstream credentials: the settlement
// bot API key and the remote signer token. Values come from AWS Secrets
// Manager when configured, with environment variables as the fallback for
// local development.
package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgsecrets "github.com/XCP/xcpfolio.com/pkg/secrets"
)

// Credentials are the agent's upstream credentials.
type Credentials struct {
	BotAPIKey   string `json:"bot_api_key"`
	SignerToken string `json:"signer_token"`
}

const cacheKey = "agent-credentials"

// Resolver fetches and caches agent credentials.
type Resolver struct {
	logger     *zap.Logger
	provider   pkgsecrets.Provider
	cache      *pkgsecrets.Cache[Credentials]
	secretName string
	fallback   Credentials
}

// NewResolver constructs a Resolver. provider may be nil, in which case
// Resolve always returns fallback.
func NewResolver(
	logger *zap.Logger,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[Credentials],
	secretName string,
	fallback Credentials,
) *Resolver {
	return &Resolver{
		logger:     logger,
		provider:   provider,
		cache:      cache,
		secretName: secretName,
		fallback:   fallback,
	}
}

// Resolve returns the agent credentials, consulting the cache first.
func (r *Resolver) Resolve(ctx context.Context) (Credentials, error) {
	if r.provider == nil || r.secretName == "" {
		return r.fallback, nil
	}

	if r.cache != nil {
		if creds, ok := r.cache.Get(cacheKey); ok {
			return creds, nil
		}
	}

	raw, err := r.provider.GetSecret(ctx, r.secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("secret", r.secretName),
			zap.Error(err))
		if r.fallback.BotAPIKey != "" || r.fallback.SignerToken != "" {
			return r.fallback, nil
		}
		return Credentials{}, fmt.Errorf("resolve credentials: %w", err)
	}

	creds, err := parseCredentials(raw)
	if err != nil {
		return Credentials{}, err
	}

	if r.cache != nil {
		r.cache.Put(cacheKey, creds)
	}
	return creds, nil
}

// Bust drops the cached credentials, forcing a refetch on the next Resolve.
func (r *Resolver) Bust() {
	if r.cache != nil {
		r.cache.Bust(cacheKey)
	}
}

func parseCredentials(m map[string]string) (Credentials, error) {
	creds := Credentials{
		BotAPIKey:   m["bot_api_key"],
		SignerToken: m["signer_token"],
	}
	if creds.BotAPIKey == "" && creds.SignerToken == "" {
		return Credentials{}, fmt.Errorf("secret carries neither 'bot_api_key' nor 'signer_token'")
	}
	return creds, nil
}
