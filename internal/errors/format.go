package errors

import (
	"encoding/json"
	"strings"
)

// FormatForCLI formats an error for CLI output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	pe, ok := err.(*PackError)
	if !ok {
		return "Error: " + err.Error() + "\n"
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(pe.Message)
	sb.WriteString("\n")
	if pe.Field != "" {
		sb.WriteString("  Field: ")
		sb.WriteString(pe.Field)
		sb.WriteString("\n")
	}
	sb.WriteString("  Kind: ")
	sb.WriteString(string(pe.Kind))
	sb.WriteString("\n")
	return sb.String()
}

// jsonError is the JSON representation of a PackError.
type jsonError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of err, suitable for machine consumption.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	pe, ok := err.(*PackError)
	if !ok {
		pe = Wrap(KindInternal, err)
	}

	je := jsonError{Kind: string(pe.Kind), Message: pe.Message, Field: pe.Field}
	if pe.Cause != nil {
		je.Cause = pe.Cause.Error()
	}
	return json.Marshal(je)
}
