package letter

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"mailmerge-backend/merge/model"
	"mailmerge-backend/merge/render"
)

// DefaultBody is the invitation text. {position} and {company} come from the record.
const DefaultBody = "I hope this letter finds you well. I am writing to inform you about our upcoming technology conference that will be held next month.\n\n" +
	"As a respected {position} at {company}, we believe your expertise and insights would be invaluable to our event. We would be honored to have you join us as a guest speaker.\n\n" +
	"The conference will focus on emerging technologies and their impact on business operations. Your experience in implementing innovative solutions would provide our attendees with valuable real-world perspectives.\n\n" +
	"Please let us know if you would be interested in participating. We can schedule a call to discuss the details further."

// Options controls page geometry and the fixed letter text. Units are points.
type Options struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
	FontSize   float64
	LineHeight float64
	// CharWidth approximates the average glyph width used for wrapping.
	CharWidth float64

	Body      string
	Closing   string
	Signature string
}

// DefaultOptions returns an A4 portrait layout.
func DefaultOptions() Options {
	return Options{
		PageWidth:  595.28,
		PageHeight: 841.89,
		Margin:     50,
		FontSize:   12,
		LineHeight: 20,
		CharWidth:  7,
		Body:       DefaultBody,
		Closing:    "Best regards,",
		Signature:  "Conference Organizing Committee",
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PageWidth <= 0 {
		o.PageWidth = def.PageWidth
	}
	if o.PageHeight <= 0 {
		o.PageHeight = def.PageHeight
	}
	if o.Margin <= 0 {
		o.Margin = def.Margin
	}
	if o.FontSize <= 0 {
		o.FontSize = def.FontSize
	}
	if o.LineHeight <= 0 {
		o.LineHeight = def.LineHeight
	}
	if o.CharWidth <= 0 {
		o.CharWidth = def.CharWidth
	}
	if o.Body == "" {
		o.Body = def.Body
	}
	if o.Closing == "" {
		o.Closing = def.Closing
	}
	if o.Signature == "" {
		o.Signature = def.Signature
	}
	return o
}

// MaxChars is the wrap budget per body line.
func (o Options) MaxChars() int {
	o = o.withDefaults()
	n := int(math.Floor((o.PageWidth - 2*o.Margin) / o.CharWidth))
	if n < 1 {
		return 1
	}
	return n
}

// Line is one drawn text line. Y is the baseline measured from the page top.
type Line struct {
	X    float64
	Y    float64
	Text string
}

// Layout is the positioned content of a single-page letter.
type Layout struct {
	Lines []Line
	// Truncated is set when content ran past the bottom margin and was dropped.
	Truncated bool
}

// Text joins the layout lines, mainly for assertions and previews.
func (l Layout) Text() string {
	parts := make([]string, len(l.Lines))
	for i, line := range l.Lines {
		parts[i] = line.Text
	}
	return strings.Join(parts, "\n")
}

// Compose positions the header block, salutation, wrapped body and closing.
func Compose(rec model.Record, opts Options) (Layout, error) {
	opts = opts.withDefaults()

	fields := make(map[string]string, len(rec.Fields)+4)
	for k, v := range rec.Fields {
		fields[k] = strings.TrimSpace(v)
	}
	for _, key := range []string{model.FieldTitle, model.FieldTo, model.FieldPosition, model.FieldCompany} {
		if _, ok := fields[key]; !ok {
			fields[key] = ""
		}
	}
	body, err := render.Substitute(opts.Body, fields)
	if err != nil {
		return Layout{}, fmt.Errorf("letter body: %w", err)
	}

	name := joinNonEmpty(rec.Get(model.FieldTitle), rec.DisplayName())
	b := &builder{opts: opts, bottom: opts.PageHeight - opts.Margin}

	y := opts.Margin
	b.add(y, name)
	y += 20
	b.add(y, rec.Get(model.FieldPosition))
	y += 20
	b.add(y, rec.Get(model.FieldCompany))
	y += 40
	b.add(y, rec.Get(model.FieldDate))
	y += 40
	b.add(y, "Dear "+name+",")
	y += 30

	maxChars := opts.MaxChars()
	first := true
	for _, paragraph := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		lines := Wrap(paragraph, maxChars)
		if len(lines) == 0 {
			continue
		}
		if !first {
			y += opts.LineHeight
		}
		for i, line := range lines {
			if i > 0 || !first {
				y += opts.LineHeight
			}
			b.add(y, line)
		}
		first = false
	}

	y += 3 * opts.LineHeight
	b.add(y, opts.Closing)
	y += opts.LineHeight
	b.add(y, opts.Signature)

	return b.layout, nil
}

// Wrap splits text into lines of at most maxChars characters, breaking only
// between words. A word longer than maxChars gets a line of its own.
func Wrap(text string, maxChars int) []string {
	if maxChars < 1 {
		maxChars = 1
	}
	var lines []string
	var current strings.Builder
	currentLen := 0
	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)
		if currentLen > 0 && currentLen+1+wordLen > maxChars {
			lines = append(lines, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	if currentLen > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

type builder struct {
	opts   Options
	bottom float64
	layout Layout
}

func (b *builder) add(y float64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if y > b.bottom {
		b.layout.Truncated = true
		return
	}
	b.layout.Lines = append(b.layout.Lines, Line{X: b.opts.Margin, Y: y, Text: text})
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
