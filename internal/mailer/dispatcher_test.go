package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeSender struct {
	sent      []*Message
	sendErr   error
	verifyErr error
}

func (f *fakeSender) Send(ctx context.Context, msg *Message) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, msg)
	return "<msg-" + msg.To + ">", nil
}

func (f *fakeSender) Verify(context.Context) error { return f.verifyErr }
func (f *fakeSender) Address() string              { return "merge@example.com" }
func (f *fakeSender) Name() string                 { return "fake" }

func TestDeliverBuildsFixedMessage(t *testing.T) {
	sender := &fakeSender{}
	d, err := NewDispatcher(sender, Config{})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	id, err := d.Deliver(context.Background(), " jane@example.com ", []Attachment{
		{Filename: "Jane_letter.docx", Content: []byte("docx")},
		{Filename: "Jane_letter.pdf", Content: []byte("pdf")},
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if id != "<msg-jane@example.com>" {
		t.Fatalf("unexpected message id %q", id)
	}
	msg := sender.sent[0]
	if msg.Subject != DefaultSubject || msg.Text != DefaultBody {
		t.Fatalf("unexpected content %+v", msg)
	}
	if !strings.Contains(msg.HTML, "<p>Please find your generated letter") {
		t.Fatalf("expected HTML paragraph, got %q", msg.HTML)
	}
	if len(msg.Attachments) != 2 {
		t.Fatalf("expected both attachments, got %d", len(msg.Attachments))
	}
}

func TestDeliverRejectsBadAddress(t *testing.T) {
	sender := &fakeSender{}
	d, _ := NewDispatcher(sender, Config{})
	for _, to := range []string{"", "not-an-address"} {
		if _, err := d.Deliver(context.Background(), to, nil); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("expected ErrInvalidAddress for %q, got %v", to, err)
		}
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected nothing sent")
	}
}

func TestDeliverWrapsTransportFailure(t *testing.T) {
	d, _ := NewDispatcher(&fakeSender{sendErr: errors.New("535 auth failed")}, Config{})
	_, err := d.Deliver(context.Background(), "jane@example.com", nil)
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

type blockingSender struct{ fakeSender }

func (b *blockingSender) Send(ctx context.Context, _ *Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestDeliverTimesOut(t *testing.T) {
	d, _ := NewDispatcher(&blockingSender{}, Config{Timeout: 20 * time.Millisecond})
	_, err := d.Deliver(context.Background(), "jane@example.com", nil)
	if !errors.Is(err, ErrSendFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline wrapped as ErrSendFailed, got %v", err)
	}
}

func TestDisabledSender(t *testing.T) {
	d, _ := NewDispatcher(nil, Config{})
	if err := d.Check(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured from Check, got %v", err)
	}
	if d.Ready() {
		t.Fatalf("disabled transport must not be ready")
	}
	if _, err := d.Deliver(context.Background(), "jane@example.com", nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured from Deliver, got %v", err)
	}
	if st := d.Status(); st.Provider != "none" || st.Error == "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestCheckRecordsReadiness(t *testing.T) {
	sender := &fakeSender{}
	d, _ := NewDispatcher(sender, Config{Timeout: time.Second})
	if err := d.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Ready() {
		t.Fatalf("expected ready after successful check")
	}

	sender.verifyErr = errors.New("dial tcp: refused")
	if err := d.Check(context.Background()); err == nil {
		t.Fatalf("expected check failure")
	}
	if d.Ready() {
		t.Fatalf("expected not ready after failed check")
	}
}

func TestSelfTestSendsToOwnAddress(t *testing.T) {
	sender := &fakeSender{}
	d, _ := NewDispatcher(sender, Config{})
	if _, err := d.SelfTest(context.Background()); err != nil {
		t.Fatalf("SelfTest: %v", err)
	}
	if sender.sent[0].To != "merge@example.com" {
		t.Fatalf("expected self-addressed message, got %q", sender.sent[0].To)
	}
}

func TestRenderHTMLSanitizes(t *testing.T) {
	html, err := renderHTML("hello <script>alert(1)</script> **there**")
	if err != nil {
		t.Fatalf("renderHTML: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("expected script to be stripped, got %q", html)
	}
	if !strings.Contains(html, "<strong>there</strong>") {
		t.Fatalf("expected markdown emphasis, got %q", html)
	}
}
