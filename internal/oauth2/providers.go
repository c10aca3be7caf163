package oauth2

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

// GraphScopes are the delegated permissions the mailbox and archive need
var GraphScopes = []string{
	"https://graph.microsoft.com/Mail.ReadWrite",
	"https://graph.microsoft.com/Mail.Send",
	"https://graph.microsoft.com/Files.ReadWrite",
	"offline_access",
}

// IMAPScopes authorise XOAUTH2 logins against Exchange Online IMAP
var IMAPScopes = []string{
	"https://outlook.office.com/IMAP.AccessAsUser.All",
	"offline_access",
}

func tenantOrCommon(tenantID string) string {
	if tenantID == "" {
		return "common"
	}
	return tenantID
}

// GetMicrosoftConfig returns the delegated (authorization code) config for
// the given scopes
func GetMicrosoftConfig(tenantID, clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     microsoft.AzureADEndpoint(tenantOrCommon(tenantID)),
	}
}

// GetClientCredentialsConfig returns the application (client credentials)
// config for Microsoft Graph
func GetClientCredentialsConfig(tenantID, clientID, clientSecret string) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     microsoft.AzureADEndpoint(tenantOrCommon(tenantID)).TokenURL,
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
}
