package batches

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailmerge-backend/internal/extract"
	"mailmerge-backend/internal/mailer"
	"mailmerge-backend/internal/shared/metrics"
	"mailmerge-backend/internal/shared/storage/object"
	"mailmerge-backend/internal/shared/telemetry"
	"mailmerge-backend/internal/shared/util"
	"mailmerge-backend/merge/letter"
	"mailmerge-backend/merge/model"
	"mailmerge-backend/merge/render"
)

const defaultRenderTimeout = 30 * time.Second

// Mailer delivers generated files to one recipient.
type Mailer interface {
	Deliver(ctx context.Context, to string, attachments []mailer.Attachment) (string, error)
}

// Service runs the merge pipeline and the resend path.
type Service struct {
	Store  object.ObjectStore
	Repo   Repo
	Mailer Mailer
	Letter letter.Options

	// RenderTimeout bounds DOCX and PDF generation for one record.
	RenderTimeout time.Duration

	Now   func() time.Time
	NewID func() string
}

// Input is one batch submission.
type Input struct {
	TemplateName string
	Template     []byte
	DataName     string
	Data         []byte
	SkipEmail    bool
}

// ResendInput identifies previously generated files to deliver again.
type ResendInput struct {
	To      string
	Docx    string
	PDF     string
	BatchID string
	Index   *int
}

// Process validates the inputs, then handles every record in order. Record
// failures are captured in that record's Result; only input errors abort.
func (s *Service) Process(ctx context.Context, in Input) (Batch, error) {
	if len(in.Template) == 0 {
		metrics.IncBatchRejected()
		return Batch{}, fmt.Errorf("%w: template file is required", ErrInvalidInput)
	}
	if len(in.Data) == 0 {
		metrics.IncBatchRejected()
		return Batch{}, fmt.Errorf("%w: data file is required", ErrInvalidInput)
	}

	tmpl, err := render.Parse(in.Template)
	if err != nil {
		metrics.IncBatchRejected()
		return Batch{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	table, err := extract.ExtractRecords(ctx, in.Data, in.DataName)
	if err != nil {
		metrics.IncBatchRejected()
		if ctx.Err() != nil {
			return Batch{}, err
		}
		return Batch{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	for _, name := range tmpl.Placeholders() {
		if !table.HasHeader(name) {
			metrics.IncBatchRejected()
			return Batch{}, fmt.Errorf("%w: %w: template uses {%s} but the data file has no such column", ErrInvalidInput, render.ErrUnknownField, name)
		}
	}

	batch := Batch{
		ID:           s.newID(),
		TemplateName: in.TemplateName,
		DataName:     in.DataName,
		SkipEmail:    in.SkipEmail,
		CreatedAt:    s.now(),
		Results:      make([]Result, 0, len(table.Records)),
	}
	metrics.IncBatchSubmitted()
	telemetry.Info("batch.started", map[string]any{
		"batch_id":     batch.ID,
		"record_count": len(table.Records),
		"skip_email":   in.SkipEmail,
	})

	for i, rec := range table.Records {
		batch.Results = append(batch.Results, s.processRecord(ctx, batch.ID, i, rec, tmpl, in.SkipEmail))
	}

	completed := s.now()
	batch.CompletedAt = &completed
	succeeded, failed := batch.Counts()
	telemetry.Info("batch.completed", map[string]any{
		"batch_id":  batch.ID,
		"succeeded": succeeded,
		"failed":    failed,
	})

	if err := s.Repo.Create(ctx, batch); err != nil {
		telemetry.Error("batch.persist_failed", map[string]any{"batch_id": batch.ID, "err": err})
	}
	return batch, nil
}

func (s *Service) processRecord(ctx context.Context, batchID string, index int, rec model.Record, tmpl *render.Template, skipEmail bool) Result {
	start := time.Now()
	res := Result{
		Index: index,
		Row:   rec.Row,
		To:    rec.Email(),
		Name:  rec.DisplayName(),
	}
	fail := func(stage string, err error) Result {
		res.Status = StatusError
		res.Error = err.Error()
		res.UpdatedAt = s.now()
		metrics.IncRecordFailed()
		metrics.ObserveRecordDurationMs(float64(time.Since(start).Milliseconds()))
		telemetry.Warn("batch.record.failed", map[string]any{
			"batch_id": batchID,
			"index":    index,
			"row":      rec.Row,
			"stage":    stage,
			"err":      err,
		})
		return res
	}

	if err := model.ValidateRecord(rec); err != nil {
		return fail("validate", err)
	}

	files := FileNames(batchID, rec.DisplayName())
	docxData, pdfData, err := s.renderRecord(ctx, batchID, rec, tmpl)
	if err != nil {
		return fail("render", err)
	}
	if err := s.save(ctx, files.Docx, docxData); err != nil {
		return fail("store", err)
	}
	if err := s.save(ctx, files.PDF, pdfData); err != nil {
		return fail("store", err)
	}
	res.Files = &files

	if !skipEmail {
		msgID, err := s.Mailer.Deliver(ctx, rec.Email(), attachmentsFor(files, docxData, pdfData))
		if err != nil {
			metrics.IncDeliveryFailed()
			res.EmailError = err.Error()
			return fail("deliver", err)
		}
		metrics.IncDeliverySent()
		res.EmailSent = true
		res.MessageID = msgID
	}

	res.Status = StatusSuccess
	res.UpdatedAt = s.now()
	metrics.IncRecordSucceeded()
	metrics.ObserveRecordDurationMs(float64(time.Since(start).Milliseconds()))
	return res
}

func (s *Service) renderRecord(ctx context.Context, batchID string, rec model.Record, tmpl *render.Template) ([]byte, []byte, error) {
	timeout := s.RenderTimeout
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	docxData, err := tmpl.Render(ctx, rec.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("render document: %w", err)
	}
	pdfData, layout, err := letter.Render(ctx, rec, s.Letter)
	if err != nil {
		return nil, nil, fmt.Errorf("render letter: %w", err)
	}
	if layout.Truncated {
		telemetry.Warn("letter.truncated", map[string]any{"batch_id": batchID, "row": rec.Row})
	}
	return docxData, pdfData, nil
}

func (s *Service) save(ctx context.Context, key string, data []byte) error {
	if _, err := s.Store.SaveWithKey(ctx, key, object.ContentTypeFor(key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Get returns a stored batch.
func (s *Service) Get(ctx context.Context, id string) (Batch, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Batch{}, ErrNotFound
	}
	return s.Repo.Get(ctx, id)
}

// Resend delivers previously generated files again without regenerating them.
// When a batch and index are given, the stored result records the attempt.
func (s *Service) Resend(ctx context.Context, in ResendInput) (string, error) {
	to := strings.TrimSpace(in.To)
	if to == "" || strings.TrimSpace(in.Docx) == "" || strings.TrimSpace(in.PDF) == "" {
		return "", fmt.Errorf("%w: to, files.docx and files.pdf are required", ErrInvalidInput)
	}
	docxName, err := util.SanitizeFileName(in.Docx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	pdfName, err := util.SanitizeFileName(in.PDF)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	docxData, err := s.load(ctx, docxName)
	if err != nil {
		return "", err
	}
	pdfData, err := s.load(ctx, pdfName)
	if err != nil {
		return "", err
	}

	files := Files{Docx: docxName, PDF: pdfName}
	msgID, sendErr := s.Mailer.Deliver(ctx, to, attachmentsFor(files, docxData, pdfData))
	if sendErr != nil {
		metrics.IncDeliveryFailed()
	} else {
		metrics.IncDeliverySent()
	}

	if in.BatchID != "" && in.Index != nil {
		update := DeliveryUpdate{Sent: sendErr == nil, MessageID: msgID, At: s.now()}
		if sendErr != nil {
			update.Error = sendErr.Error()
		}
		s.recordResend(ctx, in.BatchID, *in.Index, to, update)
	}

	if sendErr != nil {
		return "", sendErr
	}
	return msgID, nil
}

// recordResend stores the outcome on the batch result only when the resend
// went to that result's own recipient.
func (s *Service) recordResend(ctx context.Context, batchID string, index int, to string, update DeliveryUpdate) {
	fields := map[string]any{"batch_id": batchID, "index": index}
	batch, err := s.Repo.Get(ctx, batchID)
	if err != nil {
		fields["err"] = err
		telemetry.Warn("batch.mark_delivery_failed", fields)
		return
	}
	if index < 0 || index >= len(batch.Results) {
		telemetry.Warn("batch.mark_delivery_failed", fields)
		return
	}
	if !strings.EqualFold(batch.Results[index].To, to) {
		telemetry.Info("batch.mark_delivery_skipped", fields)
		return
	}
	if err := s.Repo.MarkDelivery(ctx, batchID, index, update); err != nil {
		fields["err"] = err
		telemetry.Warn("batch.mark_delivery_failed", fields)
	}
}

func (s *Service) load(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) || errors.Is(err, object.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func attachmentsFor(files Files, docxData, pdfData []byte) []mailer.Attachment {
	return []mailer.Attachment{
		{Filename: DownloadName(files.Docx), ContentType: object.ContentTypeFor(files.Docx), Content: docxData},
		{Filename: DownloadName(files.PDF), ContentType: object.ContentTypeFor(files.PDF), Content: pdfData},
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
