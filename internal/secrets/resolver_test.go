package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgsecrets "github.com/XCP/xcpfolio.com/pkg/secrets"
)

type fakeProvider struct {
	calls  int
	secret map[string]string
	err    error
}

func (f *fakeProvider) GetSecret(context.Context, string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.secret, nil
}

func TestResolver_Resolve(t *testing.T) {
	provider := &fakeProvider{secret: map[string]string{
		"bot_api_key":  "bot-key",
		"signer_token": "signer-tok",
	}}
	cache := pkgsecrets.NewCache[Credentials](time.Minute)
	resolver := NewResolver(zap.NewNop(), provider, cache, "xcpfolio/agent", Credentials{})

	creds, err := resolver.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "bot-key", creds.BotAPIKey)
	assert.Equal(t, "signer-tok", creds.SignerToken)

	// Second resolve is served from cache.
	_, err = resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestResolver_NoProviderUsesFallback(t *testing.T) {
	fallback := Credentials{BotAPIKey: "env-key"}
	resolver := NewResolver(zap.NewNop(), nil, nil, "", fallback)

	creds, err := resolver.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "env-key", creds.BotAPIKey)
}

func TestResolver_FetchFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{err: errors.New("aws unreachable")}
	fallback := Credentials{SignerToken: "env-tok"}
	resolver := NewResolver(zap.NewNop(), provider, nil, "xcpfolio/agent", fallback)

	creds, err := resolver.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "env-tok", creds.SignerToken)
}

func TestResolver_FetchFailureWithoutFallback(t *testing.T) {
	provider := &fakeProvider{err: errors.New("aws unreachable")}
	resolver := NewResolver(zap.NewNop(), provider, nil, "xcpfolio/agent", Credentials{})

	_, err := resolver.Resolve(context.Background())
	require.Error(t, err)
}

func TestResolver_EmptySecretRejected(t *testing.T) {
	provider := &fakeProvider{secret: map[string]string{"unrelated": "x"}}
	resolver := NewResolver(zap.NewNop(), provider, nil, "xcpfolio/agent", Credentials{})

	_, err := resolver.Resolve(context.Background())
	require.Error(t, err)
}

func TestResolver_BustForcesRefetch(t *testing.T) {
	provider := &fakeProvider{secret: map[string]string{"bot_api_key": "v1"}}
	cache := pkgsecrets.NewCache[Credentials](time.Minute)
	resolver := NewResolver(zap.NewNop(), provider, cache, "xcpfolio/agent", Credentials{})

	_, err := resolver.Resolve(context.Background())
	require.NoError(t, err)

	resolver.Bust()
	_, err = resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}
