// Package masking hides sensitive-looking data in GraphQL responses,
// variables, query summaries and error messages.
//
// Masking is best effort and purely name and pattern based. A field is
// sensitive when a configured fragment is a case-insensitive substring of the
// field name or the field name is a case-insensitive substring of a
// configured fragment. The second direction makes short fragments and short
// field names match broadly (the fragment "air_date" matches a field named
// "date", and "id" matches "residents"); this is intended behavior and callers
// that need narrower matching should use longer fragments.
package masking

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/llehouerou/go-graphql-guard/pkg/document"
	"github.com/llehouerou/go-graphql-guard/pkg/jsonutil"
)

// Replacement tokens used when masking error messages.
const (
	MaskedURL   = "[MASKED_URL]"
	MaskedToken = "[MASKED_TOKEN]"
	MaskedEmail = "[MASKED_EMAIL]"

	// GenericErrorMessage replaces error messages that are empty after
	// masking.
	GenericErrorMessage = "An error occurred while processing your request."
	// UnknownErrorMessage is returned for a missing message when masking is
	// disabled.
	UnknownErrorMessage = "Unknown error"
)

var (
	bareNumberPattern = regexp.MustCompile(`\b\d{1,6}\b`)
	urlPattern        = regexp.MustCompile(`https?://[^\s"'<>]+`)
	tokenPattern      = regexp.MustCompile(`\b[A-Za-z0-9]{20,}\b`)
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
)

// Masker applies a Config. It is immutable after construction and safe for
// concurrent use.
type Masker struct {
	cfg       Config
	pattern   string
	sensitive []string
	partial   []string
	// fieldValues match "<field>: <value>" in error messages, one per
	// sensitive fragment.
	fieldValues []fieldValueMask
}

type fieldValueMask struct {
	re          *regexp.Regexp
	replacement string
}

// New creates a Masker from cfg. An empty MaskingPattern falls back to
// DefaultPattern; empty field fragments are ignored.
func New(cfg Config) *Masker {
	m := &Masker{
		cfg:       cfg,
		pattern:   cfg.MaskingPattern,
		sensitive: normalizeFragments(cfg.SensitiveFields),
		partial:   normalizeFragments(cfg.PartialMaskingFields),
	}
	if m.pattern == "" {
		m.pattern = DefaultPattern
	}
	m.cfg.MaskingPattern = m.pattern
	m.cfg.SensitiveFields = append([]string(nil), cfg.SensitiveFields...)
	m.cfg.PartialMaskingFields = append([]string(nil), cfg.PartialMaskingFields...)

	for _, field := range cfg.SensitiveFields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		m.fieldValues = append(m.fieldValues, fieldValueMask{
			re:          regexp.MustCompile(`(?i)` + regexp.QuoteMeta(field) + `\s*:\s*[^\s,;}\]]+`),
			replacement: field + ": " + m.pattern,
		})
	}
	return m
}

func normalizeFragments(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Config returns a copy of the configuration the Masker was built with.
func (m *Masker) Config() Config {
	cfg := m.cfg
	cfg.SensitiveFields = append([]string(nil), m.cfg.SensitiveFields...)
	cfg.PartialMaskingFields = append([]string(nil), m.cfg.PartialMaskingFields...)
	return cfg
}

// Pattern returns the masking token.
func (m *Masker) Pattern() string { return m.pattern }

// IsSensitiveField reports whether field matches a sensitive fragment.
func (m *Masker) IsSensitiveField(field string) bool {
	return matchesAny(field, m.sensitive)
}

// IsPartialMaskField reports whether field matches a partial-mask fragment.
func (m *Masker) IsPartialMaskField(field string) bool {
	return matchesAny(field, m.partial)
}

func matchesAny(field string, fragments []string) bool {
	key := strings.ToLower(field)
	for _, fragment := range fragments {
		if strings.Contains(key, fragment) || strings.Contains(fragment, key) {
			return true
		}
	}
	return false
}

// PartialMask keeps roughly the first and last 30% of s and puts the masking
// pattern between them. Strings of four characters or fewer are fully masked.
// The revealed ends may overlap on short strings.
func (m *Masker) PartialMask(s string) string {
	r := []rune(s)
	n := len(r)
	if n <= 4 {
		return m.pattern
	}
	visible := max(1, n*3/10)
	return string(r[:visible]) + m.pattern + string(r[n-visible:])
}

type walkMode int

const (
	// modeReplace replaces sensitive values with the pattern.
	modeReplace walkMode = iota
	// modeAudit removes sensitive members entirely.
	modeAudit
)

// MaskResponseData returns data with sensitive fields replaced by the
// pattern and partial-mask string fields partially revealed. When masking is
// disabled data is returned unchanged.
func (m *Masker) MaskResponseData(data jsonutil.Value) jsonutil.Value {
	if !m.cfg.EnableMasking {
		return data
	}
	return m.walk(data, modeReplace)
}

// MaskVariables applies the same rules as MaskResponseData to a variables
// value. It is gated by LogSafeMode rather than EnableMasking.
func (m *Masker) MaskVariables(variables jsonutil.Value) jsonutil.Value {
	if !m.cfg.LogSafeMode {
		return variables
	}
	return m.walk(variables, modeReplace)
}

// CreateAuditLogData returns data with sensitive members removed and
// partial-mask string fields partially revealed, so that audit records never
// carry even a placeholder for sensitive fields. It is gated by LogSafeMode.
func (m *Masker) CreateAuditLogData(data jsonutil.Value) jsonutil.Value {
	if !m.cfg.LogSafeMode {
		return data
	}
	return m.walk(data, modeAudit)
}

func (m *Masker) walk(v jsonutil.Value, mode walkMode) jsonutil.Value {
	switch v := v.(type) {
	case jsonutil.Mapping:
		out := make(jsonutil.Mapping, 0, len(v))
		for _, member := range v {
			if m.IsSensitiveField(member.Key) {
				if mode == modeAudit {
					continue
				}
				if m.cfg.MaskSensitiveFields {
					out = append(out, jsonutil.Member{Key: member.Key, Value: jsonutil.String(m.pattern)})
					continue
				}
			}
			if s, ok := member.Value.(jsonutil.String); ok && m.IsPartialMaskField(member.Key) {
				out = append(out, jsonutil.Member{Key: member.Key, Value: jsonutil.String(m.PartialMask(string(s)))})
				continue
			}
			out = append(out, jsonutil.Member{Key: member.Key, Value: m.walk(member.Value, mode)})
		}
		return out
	case jsonutil.Sequence:
		out := make(jsonutil.Sequence, len(v))
		for i, e := range v {
			out[i] = m.walk(e, mode)
		}
		return out
	default:
		return v
	}
}

type querySummary struct {
	Kind        string              `json:"kind"`
	Definitions []definitionSummary `json:"definitions"`
}

type definitionSummary struct {
	Kind      string `json:"kind"`
	Operation string `json:"operation,omitempty"`
}

// MaskQueryForLogging returns a JSON rendering of doc that is safe to log.
// In log-safe mode only the document kind and, per definition, its kind and
// operation type are kept; all field names are dropped. Otherwise the full
// document is serialized.
func (m *Masker) MaskQueryForLogging(doc *document.Document) string {
	if !m.cfg.LogSafeMode {
		b, err := json.Marshal(doc)
		if err != nil {
			return "null"
		}
		return string(b)
	}

	summary := querySummary{Definitions: []definitionSummary{}}
	if doc != nil {
		summary.Kind = doc.Kind
		for _, def := range doc.Definitions {
			if def == nil {
				continue
			}
			summary.Definitions = append(summary.Definitions, definitionSummary{
				Kind:      def.Kind,
				Operation: def.Operation,
			})
		}
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// MaskErrorMessage masks the message of err. A nil error has an empty
// message.
func (m *Masker) MaskErrorMessage(err error) string {
	if err == nil {
		return m.MaskMessage("")
	}
	return m.MaskMessage(err.Error())
}

// MaskMessage masks an error message: bare numbers of up to six digits, URLs,
// long alphanumeric tokens, email addresses and "<field>: <value>" pairs for
// sensitive fields are replaced, in that order. The field is written back as
// configured, so "ID: 42" becomes "id: ***" under the default fields. A
// message that ends up empty becomes GenericErrorMessage. When masking is disabled the message is
// returned as is, or UnknownErrorMessage when it is empty.
func (m *Masker) MaskMessage(msg string) string {
	if !m.cfg.EnableMasking {
		if msg == "" {
			return UnknownErrorMessage
		}
		return msg
	}

	masked := bareNumberPattern.ReplaceAllLiteralString(msg, m.pattern)
	masked = urlPattern.ReplaceAllLiteralString(masked, MaskedURL)
	masked = tokenPattern.ReplaceAllLiteralString(masked, MaskedToken)
	masked = emailPattern.ReplaceAllLiteralString(masked, MaskedEmail)
	for _, fv := range m.fieldValues {
		masked = fv.re.ReplaceAllLiteralString(masked, fv.replacement)
	}

	if masked == "" {
		return GenericErrorMessage
	}
	return masked
}
