package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/resend/resend-go/v3"

	"mailmerge-backend/internal/mailer"
)

func TestSendPostsEmail(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_123"}`))
	}))
	defer srv.Close()

	client := resend.NewClient("re_test")
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client.BaseURL = base

	sender := NewWithClient(client, Config{APIKey: "re_test", SenderEmail: "merge@example.com", SenderName: "Mail Merge System"})
	id, err := sender.Send(context.Background(), &mailer.Message{
		To:      "jane@example.com",
		Subject: "Your Generated Letter",
		Text:    "body",
		Attachments: []mailer.Attachment{
			{Filename: "Jane_letter.pdf", ContentType: "application/pdf", Content: []byte("%PDF")},
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "re_123" {
		t.Fatalf("unexpected id %q", id)
	}
	if got["from"] != "Mail Merge System <merge@example.com>" {
		t.Fatalf("unexpected from %v", got["from"])
	}
	if atts, ok := got["attachments"].([]any); !ok || len(atts) != 1 {
		t.Fatalf("expected one attachment, got %v", got["attachments"])
	}
}

func TestVerifyRequiresSettings(t *testing.T) {
	if err := New(Config{}).Verify(context.Background()); err == nil {
		t.Fatalf("expected missing api key to fail")
	}
	if err := New(Config{APIKey: "re_x"}).Verify(context.Background()); err == nil {
		t.Fatalf("expected missing sender to fail")
	}
	if err := New(Config{APIKey: "re_x", SenderEmail: "a@example.com"}).Verify(context.Background()); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}
}
