package batches

import "time"

// ProcessResponse is returned after a batch has been processed.
type ProcessResponse struct {
	Message string   `json:"message"`
	BatchID string   `json:"batchId"`
	Results []Result `json:"results"`
}

// BatchResponse is the stored view of a batch.
type BatchResponse struct {
	BatchID      string     `json:"batchId"`
	TemplateName string     `json:"templateName"`
	DataName     string     `json:"dataName"`
	SkipEmail    bool       `json:"skipEmail"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	Results      []Result   `json:"results"`
}

// DeliveryRequest asks for previously generated files to be emailed again.
type DeliveryRequest struct {
	To    string       `json:"to"`
	Files DeliveryFile `json:"files"`
	// BatchID and Index identify the stored result to update.
	BatchID string `json:"batchId"`
	Index   *int   `json:"index"`
}

// DeliveryFile names the two generated outputs.
type DeliveryFile struct {
	Docx string `json:"docx"`
	PDF  string `json:"pdf"`
}

// DeliveryResponse reports a successful resend.
type DeliveryResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

func toProcessResponse(b Batch) ProcessResponse {
	results := b.Results
	if results == nil {
		results = []Result{}
	}
	return ProcessResponse{Message: "Processing complete", BatchID: b.ID, Results: results}
}

func toBatchResponse(b Batch) BatchResponse {
	succeeded, failed := b.Counts()
	results := b.Results
	if results == nil {
		results = []Result{}
	}
	return BatchResponse{
		BatchID:      b.ID,
		TemplateName: b.TemplateName,
		DataName:     b.DataName,
		SkipEmail:    b.SkipEmail,
		CreatedAt:    b.CreatedAt,
		CompletedAt:  b.CompletedAt,
		Succeeded:    succeeded,
		Failed:       failed,
		Results:      results,
	}
}

func (r DeliveryRequest) toInput() ResendInput {
	return ResendInput{
		To:      r.To,
		Docx:    r.Files.Docx,
		PDF:     r.Files.PDF,
		BatchID: r.BatchID,
		Index:   r.Index,
	}
}
