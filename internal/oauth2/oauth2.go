package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no delegated token has been generated yet
var ErrNoToken = errors.New("no OAuth2 token stored, run `oauth2 generate`")

// TokenManager holds a delegated OAuth2 token on disk and refreshes it
type TokenManager struct {
	config    *oauth2.Config
	token     *oauth2.Token
	logger    *slog.Logger
	mu        sync.Mutex
	tokenFile string
}

// TokenFile returns where the token for accountID is kept under tokenDir
func TokenFile(tokenDir, accountID string) string {
	return filepath.Join(tokenDir, fmt.Sprintf("%s.json", accountID))
}

// NewTokenManager creates a token manager for accountID, loading any token
// already stored under tokenDir
func NewTokenManager(config *oauth2.Config, tokenDir string, accountID string, logger *slog.Logger) (*TokenManager, error) {
	if err := os.MkdirAll(tokenDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	tm := &TokenManager{
		config:    config,
		logger:    logger,
		tokenFile: TokenFile(tokenDir, accountID),
	}

	token, err := LoadToken(tm.tokenFile)
	if err != nil {
		logger.Warn("failed to load OAuth2 token", "error", err)
	} else if token != nil {
		tm.token = token
		logger.Debug("loaded existing OAuth2 token",
			"expires_at", token.Expiry.Format(time.RFC3339))
	}

	return tm, nil
}

// Token returns a valid token, refreshing it first if it expired.
// It makes TokenManager an oauth2.TokenSource.
func (tm *TokenManager) Token() (*oauth2.Token, error) {
	return tm.GetToken(context.Background())
}

// GetToken returns a valid token, refreshing it first if it expired
func (tm *TokenManager) GetToken(ctx context.Context) (*oauth2.Token, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != nil && tm.token.Valid() {
		return tm.token, nil
	}
	return tm.refreshLocked(ctx)
}

// ForceRefresh exchanges the refresh token even if the access token still
// looks valid, used after the server rejected it
func (tm *TokenManager) ForceRefresh(ctx context.Context) (*oauth2.Token, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != nil {
		expired := *tm.token
		expired.Expiry = time.Now().Add(-time.Minute)
		tm.token = &expired
	}
	return tm.refreshLocked(ctx)
}

func (tm *TokenManager) refreshLocked(ctx context.Context) (*oauth2.Token, error) {
	if tm.token == nil || tm.token.RefreshToken == "" {
		return nil, ErrNoToken
	}

	tm.logger.Debug("refreshing OAuth2 token using refresh token")
	newToken, err := tm.config.TokenSource(ctx, tm.token).Token()
	if err != nil {
		tm.logger.Error("failed to refresh OAuth2 token", "error", err)
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	tm.token = newToken
	tm.logger.Debug("OAuth2 token refreshed successfully",
		"expires_at", newToken.Expiry.Format(time.RFC3339))

	if err := saveToken(tm.tokenFile, newToken); err != nil {
		tm.logger.Warn("failed to save refreshed OAuth2 token", "error", err)
	}

	return newToken, nil
}

// SetToken replaces the token and saves it to disk
func (tm *TokenManager) SetToken(token *oauth2.Token) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.token = token
	return saveToken(tm.tokenFile, token)
}

// StartRefreshWorker refreshes the token shortly before it expires until ctx is done
func (tm *TokenManager) StartRefreshWorker(ctx context.Context) {
	go func() {
		for {
			tm.mu.Lock()
			token := tm.token
			tm.mu.Unlock()

			wait := 30 * time.Second
			if token != nil {
				wait = time.Until(token.Expiry) - 5*time.Minute
				if wait < 0 {
					wait = 0
				}
			}

			select {
			case <-time.After(wait):
				if token == nil {
					continue
				}
				if _, err := tm.ForceRefresh(ctx); err != nil {
					tm.logger.Error("background token refresh failed", "error", err)
					// back off instead of spinning on a broken refresh token
					select {
					case <-time.After(time.Minute):
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// LoadToken reads a token file; a missing file yields (nil, nil)
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}
