package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goauth2 "golang.org/x/oauth2"

	"github.com/ashish9731/email-responder/internal/logger"
	"github.com/ashish9731/email-responder/internal/oauth2"
	"github.com/ashish9731/email-responder/internal/types"
)

type fakeRing map[string]string

func (f fakeRing) Get(key string) (keyring.Item, error) {
	v, ok := f[key]
	if !ok {
		return keyring.Item{}, keyring.ErrKeyNotFound
	}
	return keyring.Item{Key: key, Data: []byte(v)}, nil
}

func TestResolveConfigSecrets(t *testing.T) {
	cfg := &types.Config{}
	cfg.Graph.ClientSecret = "keyring:graph"
	cfg.Generator.APIKey = "sk-plain"
	cfg.Mailbox.SMTP.Password = "keyring:smtp"

	opened := 0
	err := ResolveConfigSecrets(cfg, func() (Getter, error) {
		opened++
		return fakeRing{"graph": "s3cret", "smtp": "pw"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, opened)
	assert.Equal(t, "s3cret", cfg.Graph.ClientSecret)
	assert.Equal(t, "pw", cfg.Mailbox.SMTP.Password)
	assert.Equal(t, "sk-plain", cfg.Generator.APIKey)
}

func TestResolveConfigSecretsWithoutReferencesNeverOpensKeyring(t *testing.T) {
	cfg := &types.Config{}
	cfg.Generator.APIKey = "sk-plain"
	err := ResolveConfigSecrets(cfg, func() (Getter, error) {
		return nil, errors.New("must not open")
	})
	require.NoError(t, err)
}

func TestResolveSecretMissing(t *testing.T) {
	_, err := ResolveSecret(fakeRing{}, "keyring:absent")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestFromConfig(t *testing.T) {
	cfg := &types.Config{}
	cfg.Meta.ID = "default"
	cfg.Mailbox.Address = "ops@example.com"
	cfg.Graph.Auth = "manual"
	cfg.Graph.ClientID = "app"
	cfg.Graph.TenantID = "tenant"

	cred, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, Manual{ClientID: "app", TenantID: "tenant"}, cred)

	cfg.Graph.Auth = "oauth_token"
	cfg.Graph.TokenStoragePath = "/tmp/tokens"
	cred, err = FromConfig(cfg, []string{"scope"})
	require.NoError(t, err)
	tok, ok := cred.(OAuthToken)
	require.True(t, ok)
	assert.Equal(t, "default_ops@example.com", tok.AccountID)

	cfg.Graph.Auth = "bogus"
	_, err = FromConfig(cfg, nil)
	assert.Error(t, err)
}

func TestOAuthTokenWithoutCacheFailsRefresh(t *testing.T) {
	src, err := Resolve(context.Background(), OAuthToken{
		CachePath: t.TempDir(),
		AccountID: "acct",
		ClientID:  "app",
	}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "oauth_token", src.Kind())

	_, err = src.Token()
	assert.Error(t, err)
	assert.Error(t, src.Refresh(context.Background()))
}

func TestStaticSource(t *testing.T) {
	src := StaticSource(goauth2.StaticTokenSource(&goauth2.Token{AccessToken: "abc"}))
	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.NoError(t, src.Refresh(context.Background()))
}

func TestNeededAndScopes(t *testing.T) {
	cfg := &types.Config{}
	cfg.Mailbox.Provider = "pop3"
	cfg.Archive.Provider = "file"
	assert.False(t, Needed(cfg))

	cfg.Archive.Provider = "onedrive"
	assert.True(t, Needed(cfg))
	assert.Equal(t, oauth2.GraphScopes, ScopesFor(cfg))

	cfg.Archive.Provider = "file"
	cfg.Mailbox.Provider = "imap"
	assert.False(t, Needed(cfg))

	cfg.Mailbox.IMAP.OAuth2 = true
	assert.True(t, Needed(cfg))
	assert.Equal(t, oauth2.IMAPScopes, ScopesFor(cfg))
}
