// Package audit writes structured audit events for account and Discord
// operations. Events go to the process log as JSON; the sink can later be
// pointed at a database or external collector without touching callers.
package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Logger is the audit sink consumed by services.
type Logger interface {
	Log(event string, fields map[string]interface{})
}

// StdLogger writes audit events as JSON lines through the process logger.
type StdLogger struct{}

func NewStdLogger() *StdLogger {
	return &StdLogger{}
}

// Log writes one audit event. Fields must not contain secrets; token
// values are redacted by callers before they get here.
func (l *StdLogger) Log(event string, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["event"] = event
	fields["event_id"] = uuid.NewString()
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(fields)
	if err != nil {
		log.Printf("[Audit] %s (marshal failed: %v)", event, err)
		return
	}
	log.Printf("[Audit] %s", payload)
}
