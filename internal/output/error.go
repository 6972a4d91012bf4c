package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// ErrorOutput is the JSON envelope for a failed command.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Cause      string            `json:"cause,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// NewErrorDetail converts err into its printable form. Errors that are not
// a LinkError are reported as GENERAL_ERROR. A cause that is itself a
// LinkError is already part of the message and is not repeated.
func NewErrorDetail(err error) ErrorDetail {
	var le *linkerr.LinkError
	if !errors.As(err, &le) {
		return ErrorDetail{
			Code:     linkerr.ErrGeneral.Code,
			Message:  err.Error(),
			ExitCode: linkerr.ExitGeneral,
		}
	}

	d := ErrorDetail{
		Code:       le.Code,
		Message:    le.Message,
		Details:    le.Details,
		Suggestion: le.Suggestion,
		ExitCode:   le.ExitCode,
	}
	var inner *linkerr.LinkError
	if le.Cause != nil && !errors.As(le.Cause, &inner) {
		d.Cause = le.Cause.Error()
	}
	return d
}

// FormatError writes err to w in the given format. A nil error writes nothing.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	d := NewErrorDetail(err)
	if format == FormatJSON {
		return encodeJSON(w, ErrorOutput{Error: d})
	}
	return formatErrorText(w, d)
}

func formatErrorText(w io.Writer, d ErrorDetail) error {
	var sb strings.Builder

	sb.WriteString("Error: " + d.Message)
	if d.Cause != "" {
		sb.WriteString(": " + d.Cause)
	}
	sb.WriteString("\n")

	if len(d.Details) > 0 {
		keys := make([]string, 0, len(d.Details))
		for k := range d.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			_, _ = fmt.Fprintf(&sb, "  %s: %s\n", k, d.Details[k])
		}
	}

	if d.Suggestion != "" {
		sb.WriteString("\nSuggestion: " + d.Suggestion + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatSuccess writes a one-line success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return encodeJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
