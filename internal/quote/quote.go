// Package quote describes the documents stored in the corpus: an optional
// lead-in line, the quoted content, and a closing attribution line.
package quote

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

// Anonymous is written as the attribution line when none is supplied.
const Anonymous = "Anonymous"

const (
	maxContentLength = 4096
	maxLineLength    = 512
)

// Quote is a single corpus document before formatting.
type Quote struct {
	LeadIn      string `json:"lead_in"`
	Content     string `json:"content"`
	Attribution string `json:"attribution"`
	Source      string `json:"source"`
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Validate rejects a quote with no content or with oversized fields.
func (q Quote) Validate() error {
	errs := make(map[string]string)
	content := strings.TrimSpace(q.Content)
	if content == "" {
		errs["content"] = "content is required and must not be empty"
	} else if len(content) > maxContentLength {
		errs["content"] = fmt.Sprintf("content must be at most %d characters", maxContentLength)
	}
	for field, v := range map[string]string{
		"lead_in":     q.LeadIn,
		"attribution": q.Attribution,
		"source":      q.Source,
	} {
		if len(v) > maxLineLength {
			errs[field] = fmt.Sprintf("%s must be at most %d characters", field, maxLineLength)
		} else if strings.ContainsAny(v, "\r\n") {
			errs[field] = fmt.Sprintf("%s must be a single line", field)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Format renders the stored document text:
//
//	[<lead-in>...]
//	'<content>'
//	<attribution>[, <source>]
func (q Quote) Format() string {
	var b strings.Builder
	if leadIn := strings.TrimSpace(q.LeadIn); leadIn != "" {
		b.WriteString(leadIn)
		if !strings.HasSuffix(leadIn, "...") {
			b.WriteString("...")
		}
		b.WriteByte('\n')
	}
	b.WriteString(quoted(strings.TrimSpace(q.Content)))
	b.WriteByte('\n')
	b.WriteString(q.signature())
	return b.String()
}

func (q Quote) signature() string {
	parts := make([]string, 0, 2)
	for _, s := range []string{q.Attribution, q.Source} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return Anonymous
	}
	return strings.Join(parts, ", ")
}

func quoted(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return s
	}
	return "'" + s + "'"
}

// ErrEmptyDocument is returned by Parse for blank text.
var ErrEmptyDocument = errors.New("empty document")

// Parse splits stored document text back into its parts. Three or more lines
// are read as lead-in, content, attribution; two lines as content and
// attribution; a single line as content. The attribution line is returned
// whole in Source.
func Parse(text string) (Quote, error) {
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")), "\n")
	if len(lines) == 1 && strings.TrimSpace(lines[0]) == "" {
		return Quote{}, ErrEmptyDocument
	}
	switch len(lines) {
	case 1:
		return Quote{Content: lines[0]}, nil
	case 2:
		return Quote{Content: lines[0], Source: lines[1]}, nil
	default:
		return Quote{
			LeadIn:  lines[0],
			Content: strings.Join(lines[1:len(lines)-1], "\n"),
			Source:  lines[len(lines)-1],
		}, nil
	}
}
