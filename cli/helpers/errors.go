package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/engine/core"
)

// CliError is a user-facing command error with a stable code.
type CliError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *CliError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCliError creates a new CLI error
func NewCliError(code, message string, details ...string) *CliError {
	err := &CliError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// IsReauthError reports whether err asks the user to grant calendar access
// again.
func IsReauthError(err error) bool {
	if err == nil {
		return false
	}
	if calendar.IsPermissionError(err) || core.ErrorCode(err) == calendar.ReauthMarker {
		return true
	}
	return strings.Contains(err.Error(), calendar.ReauthMarker)
}

// FormatError renders err for the given output format.
func FormatError(err error, format OutputFormat) string {
	if err == nil {
		return ""
	}
	if format == OutputFormatJSON {
		return formatErrorJSON(err)
	}
	return formatErrorText(err)
}

func formatErrorJSON(err error) string {
	payload := map[string]any{"error": err.Error()}
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		payload = map[string]any{"error": cliErr.Message, "code": cliErr.Code, "details": cliErr.Details}
	} else if code := core.ErrorCode(err); code != "" {
		payload["code"] = code
	}
	b, mErr := json.MarshalIndent(payload, "", "  ")
	if mErr != nil {
		return `{"error": "failed to encode error"}`
	}
	return string(b)
}

func formatErrorText(err error) string {
	message, details := err.Error(), ""
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		message, details = cliErr.Message, cliErr.Details
	}
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF6B6B")).
		Bold(true)
	out := style.Render("error: " + message)
	if IsReauthError(err) {
		out += "\n" + hintStyle.Render("calendar access must be granted again before retrying")
	}
	if details != "" {
		detailStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
		out += "\n" + detailStyle.Render("Details: "+details)
	}
	return out
}
