// internal/logging/logging.go
// Package logging routes the application's log output to a log file and, when
// requested, to stdout as well.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init opens logPath for appending and points the standard logger at it. When echo
// is true log lines are also written to stdout. With an empty path and no echo the
// output is discarded so command output stays copy-ready.
func Init(logPath string, echo bool) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	if echo {
		writers = append(writers, os.Stdout)
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close releases the log file and restores stderr output.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// LogEvent writes a formatted line.
func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogSession writes a formatted line tagged with a capability and session id.
func LogSession(capability, sessionID, format string, args ...any) {
	log.Println(buildSessionMessage(capability, sessionID, fmt.Sprintf(format, args...)))
}

// LogRequest writes a request or response exchanged with a host.
func LogRequest(direction, host, model, capability string, payload any) {
	msg := buildRequestMessage(direction, host, model, capability, payload)
	log.Println(msg)
}

func buildSessionMessage(capability, sessionID, msg string) string {
	capValue := strings.TrimSpace(capability)
	if capValue == "" {
		capValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", capValue)}
	if id := strings.TrimSpace(sessionID); id != "" {
		parts = append(parts, fmt.Sprintf("session=%s", id))
	}
	parts = append(parts, msg)
	return strings.Join(parts, " ")
}

func buildRequestMessage(direction, host, model, capability string, payload any) string {
	dir := strings.TrimSpace(direction)
	if dir != "" {
		dir = strings.ToUpper(dir)
	}
	hostValue := strings.TrimSpace(host)
	if hostValue == "" {
		hostValue = "unknown"
	}
	modelValue := strings.TrimSpace(model)
	if modelValue == "" {
		modelValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("host=%s", hostValue))
	parts = append(parts, fmt.Sprintf("model=%s", modelValue))
	if capability = strings.TrimSpace(capability); capability != "" {
		parts = append(parts, fmt.Sprintf("capability=%s", capability))
	}
	parts = append(parts, fmt.Sprintf("payload=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
