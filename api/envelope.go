package api

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-catalog-client/internal/utils"
)

// Envelope is the uniform wrapper every API response follows. Success is a
// pointer so that "absent" and "explicitly false" can be told apart: only an
// explicit false marks a declared failure.
type Envelope struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`

	// Raw holds the undecoded response body, for callers that need fields
	// outside the envelope (e.g. login responses placing user/token at the
	// top level instead of under data).
	Raw json.RawMessage `json:"-"`
}

// APIError is the structured error the server embeds in a failed envelope.
type APIError struct {
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Failed reports whether the body explicitly declared failure.
func (e *Envelope) Failed() bool {
	return e.Success != nil && !utils.Value(e.Success)
}

// FailureMessage extracts a human-readable message for a failed response:
// error.message, then the top-level message, then a generic status line.
func (e *Envelope) FailureMessage(status int) string {
	var embedded string
	if e.Error != nil {
		embedded = e.Error.Message
	}
	return utils.FirstNonEmpty(embedded, e.Message, fmt.Sprintf("request failed with status %d", status))
}

// DecodeData unmarshals the envelope's data field into v. Absent data is
// left untouched so callers can distinguish "no payload" from a zero value.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
