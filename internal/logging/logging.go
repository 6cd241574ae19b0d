package logging

import (
	"encoding/json"
	"log"
	"time"
)

const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

type Fields struct {
	Service  string `json:"service"`
	Level    string `json:"level"`
	OrderID  string `json:"order_id,omitempty"`
	ChargeID string `json:"charge_id,omitempty"`
	EventID  string `json:"event_id,omitempty"`
	Step     string `json:"step,omitempty"`
	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Logger stamps every record with the service name.
type Logger struct {
	Service string
}

func New(service string) *Logger { return &Logger{Service: service} }

func (l *Logger) Info(f Fields)  { l.emit(LevelInfo, f) }
func (l *Logger) Warn(f Fields)  { l.emit(LevelWarn, f) }
func (l *Logger) Error(f Fields) { l.emit(LevelError, f) }

func (l *Logger) emit(level string, f Fields) {
	if l == nil {
		return
	}
	f.Level = level
	if f.Service == "" {
		f.Service = l.Service
	}
	Log(f)
}

// Log writes one JSON line through the standard logger.
func Log(fields Fields) {
	payload := struct {
		Fields
		Timestamp string `json:"timestamp"`
	}{fields, time.Now().UTC().Format(time.RFC3339Nano)}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", fields.Service, err.Error())
		return
	}
	log.Print(string(data))
}
