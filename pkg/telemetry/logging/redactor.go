package logging

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"ceeval-hq/verdict/pkg/config"
)

// Built-in pattern names.
const (
	PatternEmail = "email"
	PatternPhone = "phone"
	PatternIBAN  = "iban"
	PatternToken = "bearer_token"
)

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Redactor masks personal data of beneficiaries in log values. Dossier
// documents carry names, e-mail addresses, phone numbers and bank details;
// matched values are logged by the evaluator at debug level.
type Redactor struct {
	patterns []redactPattern
}

// NewRedactor returns a redactor with the built-in patterns plus custom.
// Custom patterns that do not compile are skipped.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	builtin := map[string][2]string{
		PatternEmail: {`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "***@***"},
		PatternPhone: {`(?:\+33\s?|\b0)[1-9](?:[\s.-]?\d{2}){4}\b`, "** ** ** ** **"},
		PatternIBAN:  {`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}(?:\s?[A-Z0-9]{1,3})?\b`, "IBAN ***"},
		PatternToken: {`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	}
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := builtin[name]
		r.patterns = append(r.patterns, redactPattern{name: name, regex: regexp.MustCompile(p[0]), replacement: p[1]})
	}

	for _, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return r
}

// RedactString masks every pattern match in s.
func (r *Redactor) RedactString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Attributes named
// like secrets are masked whole; other strings are pattern-redacted.
func (r *Redactor) ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindAny {
		if s, ok := a.Value.Any().(string); ok {
			a.Value = slog.StringValue(s)
		}
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}
	return slog.String(a.Key, r.RedactString(a.Value.String()))
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"password", "passphrase", "secret", "token", "authorization"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
