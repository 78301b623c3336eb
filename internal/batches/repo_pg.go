package batches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts the batch and all of its results in one transaction.
func (r *PGRepo) Create(ctx context.Context, batch Batch) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const insertBatch = `
INSERT INTO batches (
    id,
    template_name,
    data_name,
    skip_email,
    record_count,
    created_at,
    completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var completedAt sql.NullTime
	if batch.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *batch.CompletedAt, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, insertBatch,
		batch.ID,
		batch.TemplateName,
		batch.DataName,
		batch.SkipEmail,
		len(batch.Results),
		batch.CreatedAt,
		completedAt,
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	const insertResult = `
INSERT INTO batch_results (
    batch_id,
    row_index,
    source_row,
    recipient,
    display_name,
    status,
    email_sent,
    message_id,
    email_error,
    docx_file,
    pdf_file,
    error,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for _, res := range batch.Results {
		var docx, pdf sql.NullString
		if res.Files != nil {
			docx = nullString(res.Files.Docx)
			pdf = nullString(res.Files.PDF)
		}
		if _, err := tx.ExecContext(ctx, insertResult,
			batch.ID,
			res.Index,
			res.Row,
			res.To,
			res.Name,
			string(res.Status),
			res.EmailSent,
			nullString(res.MessageID),
			nullString(res.EmailError),
			docx,
			pdf,
			nullString(res.Error),
			res.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert result %d: %w", res.Index, err)
		}
	}

	return tx.Commit()
}

// Get loads a batch and its results ordered by input position.
func (r *PGRepo) Get(ctx context.Context, id string) (Batch, error) {
	const batchQuery = `
SELECT id, template_name, data_name, skip_email, created_at, completed_at
FROM batches
WHERE id = $1`

	var batch Batch
	var completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, batchQuery, id).Scan(
		&batch.ID,
		&batch.TemplateName,
		&batch.DataName,
		&batch.SkipEmail,
		&batch.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, err
	}
	if completedAt.Valid {
		batch.CompletedAt = &completedAt.Time
	}

	const resultsQuery = `
SELECT row_index, source_row, recipient, display_name, status, email_sent, message_id, email_error, docx_file, pdf_file, error, updated_at
FROM batch_results
WHERE batch_id = $1
ORDER BY row_index ASC`

	rows, err := r.DB.QueryContext(ctx, resultsQuery, id)
	if err != nil {
		return Batch{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var res Result
		var status string
		var messageID, emailErr, docx, pdf, recordErr sql.NullString
		if err := rows.Scan(
			&res.Index,
			&res.Row,
			&res.To,
			&res.Name,
			&status,
			&res.EmailSent,
			&messageID,
			&emailErr,
			&docx,
			&pdf,
			&recordErr,
			&res.UpdatedAt,
		); err != nil {
			return Batch{}, err
		}
		res.Status = Status(status)
		res.MessageID = messageID.String
		res.EmailError = emailErr.String
		res.Error = recordErr.String
		if docx.Valid || pdf.Valid {
			res.Files = &Files{Docx: docx.String, PDF: pdf.String}
		}
		batch.Results = append(batch.Results, res)
	}
	if err := rows.Err(); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// MarkDelivery updates the delivery columns of one result. See applyDelivery.
func (r *PGRepo) MarkDelivery(ctx context.Context, batchID string, index int, update DeliveryUpdate) error {
	var query string
	var args []any
	if update.Sent {
		query = `
UPDATE batch_results
SET email_sent = TRUE, message_id = $3, email_error = NULL, updated_at = $4,
    status = CASE WHEN status = 'error' AND docx_file IS NOT NULL THEN 'success' ELSE status END,
    error = CASE WHEN status = 'error' AND docx_file IS NOT NULL THEN NULL ELSE error END
WHERE batch_id = $1 AND row_index = $2`
		args = []any{batchID, index, update.MessageID, update.At}
	} else {
		query = `
UPDATE batch_results
SET email_error = $3, updated_at = $4
WHERE batch_id = $1 AND row_index = $2`
		args = []any{batchID, index, update.Error, update.At}
	}

	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
