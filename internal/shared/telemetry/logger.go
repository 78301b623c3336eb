package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	outMu    sync.Mutex
	out      io.Writer = os.Stdout
	sentryOn bool
	sentryMu sync.RWMutex
)

// Init enables error reporting to Sentry when dsn is non-empty.
// Local logging keeps working when Sentry cannot be initialized.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}); err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	sentryMu.Lock()
	sentryOn = true
	sentryMu.Unlock()
	return nil
}

// Flush waits for buffered Sentry events to be delivered.
func Flush(timeout time.Duration) {
	sentryMu.RLock()
	enabled := sentryOn
	sentryMu.RUnlock()
	if enabled {
		sentry.Flush(timeout)
	}
}

// SetOutput redirects log lines, mainly for tests.
func SetOutput(w io.Writer) func() {
	outMu.Lock()
	prev := out
	out = w
	outMu.Unlock()
	return func() {
		outMu.Lock()
		out = prev
		outMu.Unlock()
	}
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write("info", msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write("warn", msg, fields)
}

// Error writes an error-level log line and reports it to Sentry when enabled.
func Error(msg string, fields map[string]any) {
	write("error", msg, fields)
	capture(msg, fields)
}

func write(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["msg"] = msg

	outMu.Lock()
	defer outMu.Unlock()
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(out, `{"ts":"%s","level":"error","msg":"logger marshal failed","err":%q}`+"\n", time.Now().UTC().Format(time.RFC3339), err.Error())
		return
	}
	fmt.Fprintln(out, string(data))
}

func capture(msg string, fields map[string]any) {
	sentryMu.RLock()
	enabled := sentryOn
	sentryMu.RUnlock()
	if !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		extra := make(map[string]any, len(fields))
		for k, v := range fields {
			if err, ok := v.(error); ok && err != nil {
				v = err.Error()
			}
			extra[k] = v
		}
		scope.SetContext("fields", extra)
		if reqID, ok := fields["request_id"].(string); ok && reqID != "" {
			scope.SetTag("request_id", reqID)
		}
		sentry.CaptureMessage(msg)
	})
}
