package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"mailmerge-backend/internal/shared/telemetry"
)

const (
	DefaultSubject = "Your Generated Letter"
	DefaultBody    = "Please find your generated letter attached in both DOCX and PDF formats."

	selfTestSubject = "Mail Merge System Test"
	selfTestBody    = "This is a test message from the Mail Merge System. If you received it, outgoing mail is configured correctly."
)

// Config holds the fixed message content and send limits.
type Config struct {
	Subject string
	// Body is plain text; it is also rendered as markdown for the HTML part.
	Body    string
	Timeout time.Duration
}

// Status is the last known transport readiness.
type Status struct {
	Provider  string    `json:"provider"`
	Ready     bool      `json:"ready"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt,omitempty"`
}

// Dispatcher sends generated letters through one long-lived Sender.
type Dispatcher struct {
	sender   Sender
	subject  string
	text     string
	html     string
	timeout  time.Duration
	validate *validator.Validate

	mu     sync.RWMutex
	status Status
}

// NewDispatcher wraps sender. The HTML body is rendered once here.
func NewDispatcher(sender Sender, cfg Config) (*Dispatcher, error) {
	if sender == nil {
		sender = Disabled{}
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Body == "" {
		cfg.Body = DefaultBody
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	html, err := renderHTML(cfg.Body)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		sender:   sender,
		subject:  cfg.Subject,
		text:     cfg.Body,
		html:     html,
		timeout:  cfg.Timeout,
		validate: validator.New(),
		status:   Status{Provider: sender.Name()},
	}, nil
}

// Check verifies the transport and records the outcome for Ready and Status.
func (d *Dispatcher) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.sender.Verify(ctx)
	st := Status{Provider: d.sender.Name(), Ready: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		st.Error = err.Error()
	}
	d.mu.Lock()
	d.status = st
	d.mu.Unlock()

	if err != nil {
		telemetry.Error("mail.verify.failed", map[string]any{"provider": st.Provider, "err": err})
		return err
	}
	telemetry.Info("mail.verify.ok", map[string]any{"provider": st.Provider})
	return nil
}

// Ready reports whether the last Check succeeded.
func (d *Dispatcher) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status.Ready
}

// Status returns the last Check outcome.
func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Deliver emails the attachments to one recipient and returns the message ID.
func (d *Dispatcher) Deliver(ctx context.Context, to string, attachments []Attachment) (string, error) {
	to = strings.TrimSpace(to)
	if err := d.validate.Var(to, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, to)
	}
	return d.send(ctx, &Message{
		To:          to,
		Subject:     d.subject,
		Text:        d.text,
		HTML:        d.html,
		Attachments: attachments,
	})
}

// SelfTest sends a short message to the transport's own address.
func (d *Dispatcher) SelfTest(ctx context.Context) (string, error) {
	addr := d.sender.Address()
	if addr == "" {
		return "", ErrNotConfigured
	}
	html, err := renderHTML(selfTestBody)
	if err != nil {
		return "", err
	}
	return d.send(ctx, &Message{To: addr, Subject: selfTestSubject, Text: selfTestBody, HTML: html})
}

func (d *Dispatcher) send(ctx context.Context, msg *Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return id, nil
}
