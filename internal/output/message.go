package output

import (
	"fmt"
	"io"
)

// Message prefixes.
const (
	prefixInfo    = "ℹ️  "
	prefixWarn    = "⚠️  "
	prefixSuccess = "✅ "
)

// Messenger writes prefixed one-line notices. Notices are for people:
// in JSON mode they are suppressed so the output stays machine readable.
type Messenger struct {
	out   io.Writer
	err   io.Writer
	quiet bool
}

// NewMessenger writes info and success notices to out and warnings to errw.
func NewMessenger(out, errw io.Writer, format Format) *Messenger {
	return &Messenger{out: out, err: errw, quiet: format == FormatJSON}
}

// Info prints an informational notice.
func (m *Messenger) Info(msg string) {
	m.write(m.out, prefixInfo, msg)
}

// Infof prints a formatted informational notice.
func (m *Messenger) Infof(format string, args ...any) {
	m.Info(fmt.Sprintf(format, args...))
}

// Warn prints a warning. Warnings go to the error writer even in JSON mode.
func (m *Messenger) Warn(msg string) {
	_, _ = fmt.Fprintln(m.err, prefixWarn+msg)
}

// Warnf prints a formatted warning.
func (m *Messenger) Warnf(format string, args ...any) {
	m.Warn(fmt.Sprintf(format, args...))
}

// Success prints a success notice.
func (m *Messenger) Success(msg string) {
	m.write(m.out, prefixSuccess, msg)
}

// Successf prints a formatted success notice.
func (m *Messenger) Successf(format string, args ...any) {
	m.Success(fmt.Sprintf(format, args...))
}

func (m *Messenger) write(w io.Writer, prefix, msg string) {
	if m.quiet {
		return
	}
	_, _ = fmt.Fprintln(w, prefix+msg)
}
