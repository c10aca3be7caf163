// Package credential turns the configured Microsoft Graph credential into an
// authenticated token source shared by the Graph mailbox, the OneDrive archive
// and XOAUTH2 IMAP logins.
package credential

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	goauth2 "golang.org/x/oauth2"

	"github.com/ashish9731/email-responder/internal/oauth2"
	"github.com/ashish9731/email-responder/internal/types"
)

// Credential is one of Manual or OAuthToken
type Credential interface {
	kind() string
}

// Manual is an application registration used with the client credentials grant
type Manual struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// OAuthToken is a delegated token cached on disk by `oauth2 generate`.
// ClientID and TenantID identify the app the refresh token was issued to.
type OAuthToken struct {
	CachePath    string
	AccountID    string
	ClientID     string
	ClientSecret string
	TenantID     string
	Scopes       []string
}

func (Manual) kind() string     { return "manual" }
func (OAuthToken) kind() string { return "oauth_token" }

// AccountID names the token file of the configured account
func AccountID(cfg *types.Config) string {
	return fmt.Sprintf("%s_%s", cfg.Meta.ID, cfg.Mailbox.Address)
}

// FromConfig picks the credential variant named by graph.auth
func FromConfig(cfg *types.Config, scopes []string) (Credential, error) {
	g := cfg.Graph
	switch g.Auth {
	case "manual", "":
		return Manual{ClientID: g.ClientID, ClientSecret: g.ClientSecret, TenantID: g.TenantID}, nil
	case "oauth_token":
		return OAuthToken{
			CachePath:    g.TokenStoragePath,
			AccountID:    AccountID(cfg),
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			TenantID:     g.TenantID,
			Scopes:       scopes,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported graph auth %q", g.Auth)
	}
}

// Source is a refreshable token source
type Source struct {
	kind    string
	mu      sync.Mutex
	ts      goauth2.TokenSource
	refresh func(ctx context.Context) (goauth2.TokenSource, error)
	// worker keeps a cached token fresh; nil when the source needs none
	worker func(ctx context.Context)
}

// Resolve builds the token source for cred
func Resolve(ctx context.Context, cred Credential, logger *slog.Logger) (*Source, error) {
	switch c := cred.(type) {
	case Manual:
		cc := oauth2.GetClientCredentialsConfig(c.TenantID, c.ClientID, c.ClientSecret)
		// client credentials have no refresh token; a fresh source fetches a new token
		newSource := func(ctx context.Context) (goauth2.TokenSource, error) {
			return cc.TokenSource(context.WithoutCancel(ctx)), nil
		}
		ts, _ := newSource(ctx)
		return &Source{kind: c.kind(), ts: ts, refresh: newSource}, nil

	case OAuthToken:
		conf := oauth2.GetMicrosoftConfig(c.TenantID, c.ClientID, c.ClientSecret, "", c.Scopes)
		tm, err := oauth2.NewTokenManager(conf, c.CachePath, c.AccountID, logger)
		if err != nil {
			return nil, err
		}
		refresh := func(ctx context.Context) (goauth2.TokenSource, error) {
			if _, err := tm.ForceRefresh(ctx); err != nil {
				return nil, err
			}
			return tm, nil
		}
		return &Source{kind: c.kind(), ts: tm, refresh: refresh, worker: tm.StartRefreshWorker}, nil

	default:
		return nil, fmt.Errorf("unsupported credential %T", cred)
	}
}

// StaticSource wraps a fixed token source, used by tests and pre-issued tokens
func StaticSource(ts goauth2.TokenSource) *Source {
	return &Source{
		kind: "static",
		ts:   ts,
		refresh: func(context.Context) (goauth2.TokenSource, error) {
			return ts, nil
		},
	}
}

// Kind names the credential variant behind s
func (s *Source) Kind() string {
	return s.kind
}

// Token implements oauth2.TokenSource
func (s *Source) Token() (*goauth2.Token, error) {
	s.mu.Lock()
	ts := s.ts
	s.mu.Unlock()
	return ts.Token()
}

// Refresh discards the current access token and obtains a new one
func (s *Source) Refresh(ctx context.Context) error {
	ts, err := s.refresh(ctx)
	if err != nil {
		return fmt.Errorf("refreshing %s credential: %w", s.kind, err)
	}
	if _, err := ts.Token(); err != nil {
		return fmt.Errorf("refreshing %s credential: %w", s.kind, err)
	}
	s.mu.Lock()
	s.ts = ts
	s.mu.Unlock()
	return nil
}

// StartBackground refreshes a cached delegated token ahead of expiry until
// ctx is done. Other credentials need no background work.
func (s *Source) StartBackground(ctx context.Context) {
	if s.worker != nil {
		s.worker(ctx)
	}
}

// HTTPClient returns a client that authenticates every request with s
func (s *Source) HTTPClient(ctx context.Context) *http.Client {
	return goauth2.NewClient(ctx, s)
}

// Needed reports whether any configured gateway authenticates against
// Microsoft with a token
func Needed(cfg *types.Config) bool {
	return cfg.Mailbox.Provider == "graph" ||
		(cfg.Mailbox.Provider == "imap" && cfg.Mailbox.IMAP.OAuth2) ||
		cfg.Archive.Provider == "onedrive"
}

// ScopesFor returns the delegated scopes a token for cfg must carry. An
// XOAUTH2 IMAP login needs the Outlook audience; everything else talks to
// Graph.
func ScopesFor(cfg *types.Config) []string {
	if cfg.Mailbox.Provider == "imap" && cfg.Mailbox.IMAP.OAuth2 {
		return oauth2.IMAPScopes
	}
	return oauth2.GraphScopes
}
