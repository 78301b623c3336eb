package mailer

import "context"

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a fully prepared email. The sender supplies the From address.
type Message struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender is a mail transport.
type Sender interface {
	// Send delivers msg and returns the transport's message identifier.
	Send(ctx context.Context, msg *Message) (string, error)
	// Verify checks that the transport is usable without sending anything.
	Verify(ctx context.Context) error
	// Address is the envelope sender, used for self-test messages.
	Address() string
	// Name identifies the transport in logs and health output.
	Name() string
}

// Disabled is the Sender used when no transport is configured.
type Disabled struct{}

func (Disabled) Send(context.Context, *Message) (string, error) { return "", ErrNotConfigured }
func (Disabled) Verify(context.Context) error                   { return ErrNotConfigured }
func (Disabled) Address() string                                { return "" }
func (Disabled) Name() string                                   { return "none" }
