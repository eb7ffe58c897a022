package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor masks secrets in log output.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor for inference API keys and bearer tokens.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._~+/=-]+`),
			regexp.MustCompile(`\bsk-[a-zA-Z0-9_-]{8,}`),
			// JSON members carrying the stored key, e.g. "ollama_api_key":"..."
			regexp.MustCompile(`"(ollama_api_key|api_key|apiKey)"\s*:\s*"[^"]*"`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact masks every match in s. JSON members keep their key so the line
// stays valid JSON.
func (r *Redactor) Redact(s string) string {
	for _, pattern := range r.patterns {
		if pattern.NumSubexp() > 0 {
			s = pattern.ReplaceAllString(s, `"$1":"`+redacted+`"`)
			continue
		}
		s = pattern.ReplaceAllString(s, redacted)
	}
	return s
}

// Wrap returns a writer that redacts before writing to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; zerolog treats a short count as an error.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
