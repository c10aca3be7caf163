package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	goauth2 "golang.org/x/oauth2"

	"github.com/ashish9731/email-responder/internal/credential"
)

// GraphMailbox talks to an Outlook mailbox through Microsoft Graph
type GraphMailbox struct {
	client *resty.Client
	source *credential.Source
	user   string
	logger *slog.Logger
}

// NewGraphMailbox creates a Graph mailbox. userID selects /users/{id}; empty
// means the signed-in user (/me), which only works with delegated tokens.
func NewGraphMailbox(ctx context.Context, baseURL, userID string, source *credential.Source, timeout time.Duration, logger *slog.Logger) *GraphMailbox {
	client := resty.NewWithClient(source.HTTPClient(ctx)).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	user := "/me"
	if userID != "" {
		user = "/users/" + userID
	}

	return &GraphMailbox{client: client, source: source, user: user, logger: logger}
}

func (g *GraphMailbox) Name() string {
	return "graph"
}

type graphAddress struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	ID               string       `json:"id"`
	Subject          string       `json:"subject"`
	BodyPreview      string       `json:"bodyPreview"`
	ReceivedDateTime time.Time    `json:"receivedDateTime"`
	IsRead           bool         `json:"isRead"`
	From             graphAddress `json:"from"`
	Body             struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *GraphMailbox) ListUnread(ctx context.Context, max int) ([]RawMessage, error) {
	var page struct {
		Value []graphMessage `json:"value"`
	}
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"$filter":  "isRead eq false",
			"$top":     strconv.Itoa(max),
			"$orderby": "receivedDateTime desc",
			"$select":  "id,subject,bodyPreview,body,from,receivedDateTime,isRead",
		}).
		SetResult(&page).
		SetError(&graphError{}).
		Get(g.user + "/messages")
	if err := classify("list messages", resp, err); err != nil {
		return nil, err
	}

	messages := make([]RawMessage, 0, len(page.Value))
	for _, m := range page.Value {
		body := m.Body.Content
		if body == "" {
			body = m.BodyPreview
		}
		messages = append(messages, RawMessage{
			ID:          m.ID,
			SenderEmail: m.From.EmailAddress.Address,
			SenderName:  m.From.EmailAddress.Name,
			Subject:     m.Subject,
			Body:        body,
			ReceivedAt:  m.ReceivedDateTime,
		})
	}

	g.logger.Debug("listed unread graph messages", "count", len(messages))
	return messages, nil
}

func (g *GraphMailbox) Send(ctx context.Context, msg OutgoingMessage) error {
	message := map[string]any{
		"subject": msg.Subject,
		"body": map[string]string{
			"contentType": "HTML",
			"content":     msg.Body,
		},
		"toRecipients": []map[string]any{
			{"emailAddress": map[string]string{"address": msg.To}},
		},
	}
	if msg.Attachment != nil {
		message["attachments"] = []map[string]any{{
			"@odata.type":  "#microsoft.graph.fileAttachment",
			"name":         msg.Attachment.Name,
			"contentType":  msg.Attachment.ContentType,
			"contentBytes": base64.StdEncoding.EncodeToString(msg.Attachment.Content),
		}}
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"message": message, "saveToSentItems": true}).
		SetError(&graphError{}).
		Post(g.user + "/sendMail")
	return classify("send mail", resp, err)
}

func (g *GraphMailbox) MarkRead(ctx context.Context, id string) error {
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(map[string]bool{"isRead": true}).
		SetError(&graphError{}).
		Patch(g.user + "/messages/{id}")
	return classify("mark read", resp, err)
}

func (g *GraphMailbox) Refresh(ctx context.Context) error {
	if err := g.source.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// classify maps a Graph response onto the mailbox error taxonomy
func classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		var retrieve *goauth2.RetrieveError
		if errors.As(err, &retrieve) {
			return fmt.Errorf("%s: %w: %v", op, ErrAuthExpired, err)
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}

	detail := resp.Status()
	if e, ok := resp.Error().(*graphError); ok && e.Error.Message != "" {
		detail = fmt.Sprintf("%s: %s", e.Error.Code, e.Error.Message)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w: %s", op, ErrAuthExpired, detail)
	case code == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %s", op, ErrNotConnected, detail)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%s: %w: %s", op, ErrUnavailable, detail)
	default:
		return fmt.Errorf("%s: %w: %s", op, ErrRejected, detail)
	}
}
