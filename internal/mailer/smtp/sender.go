package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/semaphore"

	"mailmerge-backend/internal/mailer"
)

const gmailScope = "https://mail.google.com/"

// Config describes an SMTP relay. When OAuthRefreshToken is set the sender
// authenticates with XOAUTH2 instead of the password.
type Config struct {
	Host     string
	Port     int
	SSL      bool
	Username string
	Password string
	FromName string
	Timeout  time.Duration

	OAuthClientID     string
	OAuthClientSecret string
	OAuthRefreshToken string
}

// Sender delivers mail through one shared go-mail client.
type Sender struct {
	cfg    Config
	tokens oauth2.TokenSource

	// lock serializes use of client; waiting on it honours the caller's context.
	lock   *semaphore.Weighted
	client *mail.Client
}

// New builds the SMTP client. No connection is made until Verify or Send.
func New(cfg Config) (*Sender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("smtp username is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 465
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithUsername(cfg.Username),
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	s := &Sender{cfg: cfg, lock: semaphore.NewWeighted(1)}
	if cfg.OAuthRefreshToken != "" {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmailScope},
		}
		s.tokens = oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.OAuthRefreshToken})
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthXOAUTH2))
	} else {
		if cfg.Password == "" {
			return nil, errors.New("smtp password or oauth refresh token is required")
		}
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	s.client = client
	return s, nil
}

// Name implements mailer.Sender.
func (s *Sender) Name() string {
	if s.tokens != nil {
		return "smtp-oauth2"
	}
	return "smtp"
}

// Address implements mailer.Sender.
func (s *Sender) Address() string {
	return s.cfg.Username
}

// Verify dials and authenticates, then hangs up.
func (s *Sender) Verify(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.lock.Release(1)

	if err := s.refreshToken(); err != nil {
		return err
	}
	if err := s.client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return s.client.Close()
}

// Send implements mailer.Sender.
func (s *Sender) Send(ctx context.Context, msg *mailer.Message) (string, error) {
	m, messageID, err := s.buildMsg(msg)
	if err != nil {
		return "", err
	}

	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.lock.Release(1)

	if err := s.refreshToken(); err != nil {
		return "", err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return messageID, nil
}

func (s *Sender) acquire(ctx context.Context) error {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("smtp busy: %w", err)
	}
	return nil
}

func (s *Sender) buildMsg(msg *mailer.Message) (*mail.Msg, string, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.Username); err != nil {
		return nil, "", fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, "", fmt.Errorf("%w: %v", mailer.ErrInvalidAddress, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()

	id := uuid.NewString() + "@" + domainOf(s.cfg.Username)
	m.SetMessageIDWithValue(id)

	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	for _, a := range msg.Attachments {
		opts := []mail.FileOption{}
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Content), opts...); err != nil {
			return nil, "", fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}
	return m, "<" + id + ">", nil
}

func (s *Sender) refreshToken() error {
	if s.tokens == nil {
		return nil
	}
	tok, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("oauth2 token: %w", err)
	}
	s.client.SetPassword(tok.AccessToken)
	return nil
}

func domainOf(addr string) string {
	if _, domain, ok := strings.Cut(addr, "@"); ok && domain != "" {
		return domain
	}
	return "localhost"
}

var _ mailer.Sender = (*Sender)(nil)
