package bootstrap_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"mailmerge-backend/internal/bootstrap"
	"mailmerge-backend/internal/mailer"
	"mailmerge-backend/internal/shared/config"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []*mailer.Message
}

func (s *recordingSender) Send(_ context.Context, msg *mailer.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return fmt.Sprintf("<%d@test>", len(s.msgs)), nil
}
func (s *recordingSender) Verify(context.Context) error { return nil }
func (s *recordingSender) Address() string              { return "merge@example.com" }
func (s *recordingSender) Name() string                 { return "recording" }

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Port:               "0",
		CORSAllowOrigin:    []string{"http://localhost:5173"},
		LocalStoreDir:      t.TempDir(),
		MaxUploadBytes:     10 << 20,
		Env:                "dev",
		ObjectStoreType:    "local",
		BatchRatePerMinute: 30,
	}
}

func buildTemplate(t *testing.T) []byte {
	t.Helper()
	const ns = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document ` + ns + `><w:body>` +
			`<w:p><w:r><w:t>Dear {title} </w:t></w:r><w:r><w:t>{to},</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>{position} at {company}, {date}</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := book.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path string, template, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, part := range map[string][]byte{"template": template, "datafile": data} {
		name := "template.docx"
		if field == "datafile" {
			name = "test_data.xlsx"
		}
		fw, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(part); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadGeneratesAndDelivers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sender := &recordingSender{}
	app, err := bootstrap.Build(testConfig(t), bootstrap.Options{Sender: sender})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	if err := app.Dispatcher.Check(context.Background()); err != nil {
		t.Fatalf("dispatcher check: %v", err)
	}
	router := app.Router

	data := buildWorkbook(t, [][]interface{}{
		{"to", "email", "title", "company", "position", "date"},
		{"John Doe", "john@example.com", "Mr.", "Acme", "Engineer", "2025-03-01"},
		{"Jane Roe", "jane@example.com", "Dr.", "Globex", "Director", "2025-03-02"},
	})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "/upload", buildTemplate(t), data))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		Message string `json:"message"`
		BatchID string `json:"batchId"`
		Results []struct {
			To        string `json:"to"`
			Status    string `json:"status"`
			EmailSent bool   `json:"emailSent"`
			MessageID string `json:"messageId"`
			Files     *struct {
				Docx string `json:"docx"`
				PDF  string `json:"pdf"`
			} `json:"files"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(created.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(created.Results))
	}
	for i, res := range created.Results {
		if res.Status != "success" || !res.EmailSent || res.MessageID == "" || res.Files == nil {
			t.Fatalf("result %d: unexpected %+v", i, res)
		}
	}
	if len(sender.msgs) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.msgs))
	}
	msg := sender.msgs[0]
	if msg.Subject != mailer.DefaultSubject || len(msg.Attachments) != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}

	preview := httptest.NewRecorder()
	router.ServeHTTP(preview, httptest.NewRequest(http.MethodGet, "/preview/"+created.Results[1].Files.PDF, nil))
	if preview.Code != http.StatusOK || preview.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("expected inline pdf, got %d %q", preview.Code, preview.Header().Get("Content-Type"))
	}

	fetched := httptest.NewRecorder()
	router.ServeHTTP(fetched, httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+created.BatchID, nil))
	if fetched.Code != http.StatusOK {
		t.Fatalf("expected stored batch, got %d", fetched.Code)
	}
}

func TestHealthReportsMailStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	app, err := bootstrap.Build(testConfig(t))
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	_ = app.Dispatcher.Check(context.Background())

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var payload struct {
		OK   bool `json:"ok"`
		Mail struct {
			Provider string `json:"provider"`
			Ready    bool   `json:"ready"`
		} `json:"mail"`
		DB string `json:"db"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.OK || payload.Mail.Ready || payload.Mail.Provider != "none" || payload.DB != "memory" {
		t.Fatalf("unexpected health payload %+v", payload)
	}
}

func TestBatchSubmissionIsRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	cfg.BatchRatePerMinute = 1
	app, err := bootstrap.Build(cfg, bootstrap.Options{Sender: &recordingSender{}})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}

	data := buildWorkbook(t, [][]interface{}{
		{"to", "email", "title", "company", "position", "date"},
		{"John", "john@example.com", "Mr.", "Acme", "Engineer", "2025-03-01"},
	})
	first := httptest.NewRecorder()
	app.Router.ServeHTTP(first, uploadRequest(t, "/api/v1/batches?skipEmail=true", buildTemplate(t), data))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first submission to succeed, got %d", first.Code)
	}
	second := httptest.NewRecorder()
	app.Router.ServeHTTP(second, uploadRequest(t, "/api/v1/batches?skipEmail=true", buildTemplate(t), data))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}
