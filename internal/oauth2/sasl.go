package oauth2

import (
	"github.com/emersion/go-sasl"
)

// NewXOAUTH2Client returns a SASL client for the XOAUTH2 mechanism used by
// Exchange Online and Gmail IMAP
func NewXOAUTH2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

type xoauth2Client struct {
	username string
	token    string
}

func (a *xoauth2Client) Start() (mech string, ir []byte, err error) {
	return "XOAUTH2", []byte("user=" + a.username + "\x01auth=Bearer " + a.token + "\x01\x01"), nil
}

// Next is never called on success; a challenge carries the server's error JSON
func (a *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return nil, sasl.ErrUnexpectedServerChallenge
}
