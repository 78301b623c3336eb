package letter

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"mailmerge-backend/merge/model"
)

// Render composes the letter for rec and draws it as a single-page PDF.
// The returned layout reports whether content was truncated.
func Render(ctx context.Context, rec model.Record, opts Options) ([]byte, Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, Layout{}, err
	}
	opts = opts.withDefaults()

	layout, err := Compose(rec, opts)
	if err != nil {
		return nil, Layout{}, err
	}
	data, err := Draw(ctx, layout, opts)
	if err != nil {
		return nil, layout, err
	}
	return data, layout, nil
}

// Draw writes a composed layout with the core Helvetica font.
func Draw(ctx context.Context, layout Layout, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: opts.PageWidth, Ht: opts.PageHeight},
	})
	pdf.SetMargins(opts.Margin, opts.Margin, opts.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("mailmerge-backend", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", opts.FontSize)

	// Core fonts are cp1252; translate so accented names survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, line := range layout.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf.Text(line.X, line.Y, tr(line.Text))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
