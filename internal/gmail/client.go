// Package gmail retrieves incoming messages and PDF attachments via the
// Gmail API. It is the producer side of the invoice pipeline; no decision
// logic lives here.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tothsteve/itc-admin/internal/common"
	"github.com/tothsteve/itc-admin/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config holds Gmail API credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return fmt.Errorf("%w: gmail OAuth2 credentials are incomplete", common.ErrMissingConfig)
	}
	return nil
}

// Client implements the MailSource interface over the Gmail API.
type Client struct {
	service *gmail.Service
	logger  *slog.Logger
	retry   common.RetryOptions
}

// NewClient creates a Gmail client for the authenticated user.
func NewClient(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	token := &oauth2.Token{
		RefreshToken: config.RefreshToken,
		TokenType:    "Bearer",
	}

	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, token))
	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}

	return &Client{
		service: service,
		logger:  logger,
		retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// TestConnection verifies API access by fetching the user profile.
func (c *Client) TestConnection(ctx context.Context) error {
	profile, err := c.service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return wrapAPIError("profile fetch", err)
	}
	c.logger.Info("gmail connection verified", "email", profile.EmailAddress)
	return nil
}

// MessagesWithPDFs returns messages received since the given time that
// carry at least one PDF attachment.
func (c *Client) MessagesWithPDFs(ctx context.Context, since time.Time, maxResults int) ([]model.EmailMessage, error) {
	if maxResults <= 0 {
		maxResults = 100
	}

	query := BuildQuery(since)
	c.logger.Debug("searching gmail", "query", query, "max_results", maxResults)

	var list *gmail.ListMessagesResponse
	err := common.WithRetry(ctx, func() error {
		var listErr error
		list, listErr = c.service.Users.Messages.List("me").
			Q(query).
			MaxResults(int64(maxResults)).
			Context(ctx).
			Do()
		if listErr != nil {
			return wrapAPIError("message list", listErr)
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	messages := make([]model.EmailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := c.getMessage(ctx, ref.Id)
		if err != nil {
			c.logger.Warn("failed to fetch message details", "message_id", ref.Id, "error", err)
			continue
		}
		if msg.PDFCount() == 0 {
			continue
		}
		messages = append(messages, *msg)
	}

	c.logger.Info("fetched messages with pdf attachments", "count", len(messages))
	return messages, nil
}

// DownloadAttachment fetches and decodes the raw bytes of one attachment.
func (c *Client) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	var att *gmail.MessagePartBody
	err := common.WithRetry(ctx, func() error {
		var getErr error
		att, getErr = c.service.Users.Messages.Attachments.Get("me", messageID, attachmentID).
			Context(ctx).
			Do()
		if getErr != nil {
			return wrapAPIError("attachment fetch", getErr)
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	data, err := decodeWebSafe(att.Data)
	if err != nil {
		return nil, fmt.Errorf("attachment decode failed: %w", err)
	}
	return data, nil
}

// BuildQuery constructs the Gmail search query for PDF-bearing messages
// received on or after the given time.
func BuildQuery(since time.Time) string {
	return fmt.Sprintf("has:attachment filename:pdf after:%s", since.Format("2006/01/02"))
}

func (c *Client) getMessage(ctx context.Context, id string) (*model.EmailMessage, error) {
	var full *gmail.Message
	err := common.WithRetry(ctx, func() error {
		var getErr error
		full, getErr = c.service.Users.Messages.Get("me", id).
			Format("full").
			Context(ctx).
			Do()
		if getErr != nil {
			return wrapAPIError("message fetch", getErr)
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	msg := &model.EmailMessage{
		ID:       full.Id,
		ThreadID: full.ThreadId,
		Date:     time.UnixMilli(full.InternalDate),
	}

	if full.Payload != nil {
		for _, header := range full.Payload.Headers {
			switch header.Name {
			case "From":
				msg.Sender = header.Value
			case "Subject":
				msg.Subject = header.Value
			}
		}

		var body strings.Builder
		collectParts(full.Payload, msg, &body)
		msg.Body = body.String()
	}

	return msg, nil
}

// collectParts walks the MIME tree, gathering plain-text body fragments and
// PDF attachment references.
func collectParts(part *gmail.MessagePart, msg *model.EmailMessage, body *strings.Builder) {
	if part == nil {
		return
	}

	if part.Filename != "" {
		if strings.HasSuffix(strings.ToLower(part.Filename), ".pdf") && part.Body != nil {
			msg.Attachments = append(msg.Attachments, model.Attachment{
				Filename:     part.Filename,
				AttachmentID: part.Body.AttachmentId,
				Size:         part.Body.Size,
			})
		}
	} else if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		if decoded, err := decodeWebSafe(part.Body.Data); err == nil {
			body.Write(decoded)
			body.WriteByte('\n')
		}
	}

	for _, child := range part.Parts {
		collectParts(child, msg, body)
	}
}

// decodeWebSafe decodes Gmail's web-safe base64, which the API returns
// both with and without padding.
func decodeWebSafe(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

// wrapAPIError maps a Gmail API failure onto the shared error catalog so
// callers can tell throttling from a broken connection.
func wrapAPIError(action string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("gmail %s: %w: %v", action, common.ErrRateLimit, err)
	}
	return fmt.Errorf("gmail %s: %w: %v", action, common.ErrGmailConnection, err)
}
