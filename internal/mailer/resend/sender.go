package resend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v3"

	"mailmerge-backend/internal/mailer"
)

// Config holds Resend API settings.
type Config struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

// Sender implements mailer.Sender using the Resend API.
type Sender struct {
	client *resend.Client
	config Config
}

// New creates a new Resend sender.
func New(cfg Config) *Sender {
	return NewWithClient(resend.NewClient(cfg.APIKey), cfg)
}

// NewWithClient uses an existing API client.
func NewWithClient(client *resend.Client, cfg Config) *Sender {
	return &Sender{client: client, config: cfg}
}

// Name implements mailer.Sender.
func (s *Sender) Name() string { return "resend" }

// Address implements mailer.Sender.
func (s *Sender) Address() string { return s.config.SenderEmail }

// Verify checks the settings; the API has no side-effect free probe for send-only keys.
func (s *Sender) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(s.config.APIKey) == "" {
		return errors.New("resend: api key is required")
	}
	if strings.TrimSpace(s.config.SenderEmail) == "" {
		return errors.New("resend: sender email is required")
	}
	return nil
}

// Send implements mailer.Sender.
func (s *Sender) Send(ctx context.Context, msg *mailer.Message) (string, error) {
	from := s.config.SenderEmail
	if s.config.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.SenderName, s.config.SenderEmail)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if len(msg.Attachments) > 0 {
		req.Attachments = convertAttachments(msg.Attachments)
	}

	sent, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resend: failed to send email: %w", err)
	}
	return sent.Id, nil
}

func convertAttachments(attachments []mailer.Attachment) []*resend.Attachment {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		}
	}
	return result
}

var _ mailer.Sender = (*Sender)(nil)
