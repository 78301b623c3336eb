package batches

import (
	"strings"

	"github.com/google/uuid"

	"mailmerge-backend/internal/shared/util"
)

const (
	docxSuffix = "_letter.docx"
	pdfSuffix  = "_letter.pdf"
)

// FileNames derives the storage identifiers for a record's outputs. Within a
// batch the identifier depends only on the display name, so two records with
// the same name share (and overwrite) one pair of files.
func FileNames(batchID, displayName string) Files {
	base := batchID + "_" + util.SafeName(displayName)
	return Files{Docx: base + docxSuffix, PDF: base + pdfSuffix}
}

// DownloadName strips the batch prefix from an identifier.
func DownloadName(id string) string {
	prefix, rest, ok := strings.Cut(id, "_")
	if !ok || rest == "" {
		return id
	}
	if _, err := uuid.Parse(prefix); err != nil {
		return id
	}
	return rest
}
