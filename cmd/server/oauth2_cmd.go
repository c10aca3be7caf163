package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	goauth2 "golang.org/x/oauth2"

	"github.com/ashish9731/email-responder/internal/credential"
	"github.com/ashish9731/email-responder/internal/oauth2"
	"github.com/ashish9731/email-responder/internal/types"
)

// CreateOAuth2Command creates and returns the OAuth2 command
func CreateOAuth2Command() *cobra.Command {
	oauth2Cmd := &cobra.Command{
		Use:   "oauth2",
		Short: "OAuth2 token management",
		Long:  `Manage the delegated Microsoft token used when graph.auth is oauth_token`,
	}

	var listenAddr string
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate OAuth2 token",
		Long: `Open the Microsoft consent page, wait for the redirect on a local callback
server and store the resulting token for the configured account`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateOAuth2Token(cmd, listenAddr)
		},
	}
	generateCmd.Flags().StringVar(&listenAddr, "listen", "localhost:8085", "address of the local callback server")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "List stored OAuth2 tokens",
		Args:  cobra.NoArgs,
		RunE:  showOAuth2Tokens,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the OAuth2 token of the configured account",
		Args:  cobra.NoArgs,
		RunE:  deleteOAuth2Token,
	}

	oauth2Cmd.AddCommand(generateCmd)
	oauth2Cmd.AddCommand(showCmd)
	oauth2Cmd.AddCommand(deleteCmd)

	return oauth2Cmd
}

// loadOAuthConfig loads the configuration and checks a delegated token can be issued for it
func loadOAuthConfig() (*types.Config, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Graph.ClientID == "" {
		return nil, fmt.Errorf("graph.client_id is required to issue a token")
	}
	if cfg.Mailbox.Address == "" {
		return nil, fmt.Errorf("mailbox.address is required to name the token")
	}
	if err := credential.ResolveConfigSecrets(cfg, credential.SystemKeyring); err != nil {
		return nil, err
	}
	return cfg, nil
}

func generateOAuth2Token(cmd *cobra.Command, listenAddr string) error {
	cfg, err := loadOAuthConfig()
	if err != nil {
		return err
	}
	if cfg.Graph.Auth != "oauth_token" {
		log.Warn("graph.auth is not oauth_token, the stored token will not be used until it is", "auth", cfg.Graph.Auth)
	}

	redirectURL := "http://" + listenAddr + oauth2.CallbackPath
	oauth2Config := oauth2.GetMicrosoftConfig(
		cfg.Graph.TenantID,
		cfg.Graph.ClientID,
		cfg.Graph.ClientSecret,
		redirectURL,
		credential.ScopesFor(cfg),
	)

	state := uuid.New().String()
	authURL := oauth2Config.AuthCodeURL(state, goauth2.AccessTypeOffline, goauth2.ApprovalForce)

	fmt.Printf("Please open the following URL in your browser:\n\n%s\n\n", authURL)
	fmt.Println("Waiting for authentication...")

	authCode, err := oauth2.WaitForCode(cmd.Context(), listenAddr, state, log)
	if err != nil {
		return fmt.Errorf("failed to get authorization code: %w", err)
	}

	fmt.Println("Authorization code received, exchanging for token...")

	token, err := oauth2Config.Exchange(cmd.Context(), authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code for token: %w", err)
	}

	accountID := credential.AccountID(cfg)
	tokenManager, err := oauth2.NewTokenManager(oauth2Config, cfg.Graph.TokenStoragePath, accountID, log)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}
	if err := tokenManager.SetToken(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Printf("OAuth2 token generated and saved for account %s\n", accountID)
	fmt.Printf("Token expires at: %s\n", token.Expiry.Format("2006-01-02 15:04:05"))
	return nil
}

func showOAuth2Tokens(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	tokenDir := cfg.Graph.TokenStoragePath
	entries, err := os.ReadDir(tokenDir)
	if os.IsNotExist(err) {
		fmt.Println("No OAuth2 tokens found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read token directory %s: %w", tokenDir, err)
	}

	found := false
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		found = true
		accountID := strings.TrimSuffix(entry.Name(), ".json")

		token, err := oauth2.LoadToken(filepath.Join(tokenDir, entry.Name()))
		if err != nil || token == nil {
			fmt.Printf("Account: %s (Error reading token: %v)\n", accountID, err)
			continue
		}

		fmt.Printf("Account: %s\n", accountID)
		fmt.Printf("  Expires: %s\n", token.Expiry.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Valid: %v\n", token.Valid())
		fmt.Printf("  Refreshable: %v\n", token.RefreshToken != "")
		fmt.Println()
	}

	if !found {
		fmt.Println("No OAuth2 tokens found")
	}
	return nil
}

func deleteOAuth2Token(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	accountID := credential.AccountID(cfg)
	tokenFile := oauth2.TokenFile(cfg.Graph.TokenStoragePath, accountID)

	if _, err := os.Stat(tokenFile); os.IsNotExist(err) {
		fmt.Printf("No OAuth2 token found for account %s\n", accountID)
		return nil
	}
	if err := os.Remove(tokenFile); err != nil {
		return fmt.Errorf("failed to delete token file: %w", err)
	}

	fmt.Printf("OAuth2 token deleted for account %s\n", accountID)
	return nil
}
