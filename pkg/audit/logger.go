// Package audit records guarded operations as structured log entries.
//
// What an entry carries depends on the Mode. Development entries carry the
// full masked detail of the operation, production entries only its name,
// timestamp and whether it failed, and test mode records nothing.
package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/go-graphql-guard/pkg/document"
	"github.com/llehouerou/go-graphql-guard/pkg/jsonutil"
	"github.com/llehouerou/go-graphql-guard/pkg/masking"
	"github.com/llehouerou/go-graphql-guard/types"
)

// Message is the log message of every audit entry.
const Message = "audit_event"

// Mode selects audit verbosity.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
	ModeTest        Mode = "test"
)

// ParseMode maps an environment name to a Mode. Unknown names map to
// ModeDevelopment.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeProduction, "prod":
		return ModeProduction
	case ModeTest, "testing":
		return ModeTest
	default:
		return ModeDevelopment
	}
}

// Event is one audited operation.
type Event struct {
	// Tag classifies the event, one of the types.Audit* constants.
	Tag           string
	OperationName string
	// OperationID correlates entries of the same operation. A random id is
	// assigned when empty.
	OperationID string
	Query       *document.Document
	Variables   jsonutil.Value
	Result      jsonutil.Value
	Err         error
	// Reasons lists why the operation was blocked, if it was.
	Reasons []string
}

// Logger writes audit entries. A Logger is immutable and safe for concurrent
// use.
type Logger struct {
	log    *zap.Logger
	masker *masking.Masker
	mode   Mode
	now    func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock sets the clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New creates a Logger. A nil log discards entries and a nil masker uses
// production masking defaults.
func New(log *zap.Logger, masker *masking.Masker, mode Mode, opts ...Option) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if masker == nil {
		masker = masking.New(masking.DefaultConfig(false))
	}
	l := &Logger{log: log, masker: masker, mode: mode, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Mode returns the audit mode.
func (l *Logger) Mode() Mode { return l.mode }

// Masker returns the masker applied to audit data.
func (l *Logger) Masker() *masking.Masker { return l.masker }

// LogOperation records a finished operation. The entry is tagged
// OPERATION_FAILED when err is non-nil and OPERATION_COMPLETED otherwise.
func (l *Logger) LogOperation(name string, doc *document.Document, variables, result jsonutil.Value, err error) {
	tag := types.AuditOperationCompleted
	if err != nil {
		tag = types.AuditOperationFailed
	}
	l.Log(Event{
		Tag:           tag,
		OperationName: name,
		Query:         doc,
		Variables:     variables,
		Result:        result,
		Err:           err,
	})
}

// CreateAuditLog returns data with sensitive fields removed.
func (l *Logger) CreateAuditLog(data jsonutil.Value) jsonutil.Value {
	return l.masker.CreateAuditLogData(data)
}

// Log records ev according to the mode.
func (l *Logger) Log(ev Event) {
	switch l.mode {
	case ModeTest:
		return
	case ModeProduction:
		l.write(ev,
			zap.String("tag", ev.Tag),
			zap.String("operation", ev.OperationName),
			zap.Time("timestamp", l.now()),
			zap.Bool("had_error", ev.Err != nil || len(ev.Reasons) > 0),
		)
	default:
		id := ev.OperationID
		if id == "" {
			id = uuid.NewString()
		}
		fields := []zap.Field{
			zap.String("tag", ev.Tag),
			zap.String("operation", ev.OperationName),
			zap.String("operation_id", id),
			zap.Time("timestamp", l.now()),
			zap.String("query", l.masker.MaskQueryForLogging(ev.Query)),
		}
		if ev.Variables != nil {
			fields = append(fields, zap.Reflect("variables", l.masker.MaskVariables(ev.Variables)))
		}
		if ev.Result != nil {
			fields = append(fields, zap.Reflect("result", l.CreateAuditLog(ev.Result)))
		}
		if ev.Err != nil {
			fields = append(fields, zap.String("error", l.masker.MaskErrorMessage(ev.Err)))
		}
		if len(ev.Reasons) > 0 {
			fields = append(fields, zap.Strings("reasons", ev.Reasons))
		}
		l.write(ev, fields...)
	}
}

func (l *Logger) write(ev Event, fields ...zap.Field) {
	if ev.Tag == types.AuditOperationCompleted {
		l.log.Info(Message, fields...)
		return
	}
	l.log.Warn(Message, fields...)
}
