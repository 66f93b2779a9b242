package core

// ProtocolVersion is the wire protocol version stamped on every envelope.
const ProtocolVersion = "2.0"

// Result is the success payload of an envelope.
type Result struct {
	IsTaskComplete   bool   `json:"is_task_complete"`
	RequireUserInput bool   `json:"require_user_input"`
	Content          string `json:"content"`
}

// ErrorDetail is the failure payload of an envelope.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Envelope is the uniform response shape of both invocation protocols.
// Exactly one of Result / Error is populated; the constructors below are the
// only sanctioned way to build one.
type Envelope struct {
	Protocol string       `json:"protocol"`
	ID       string       `json:"id"`
	Result   *Result      `json:"result,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// NewResultEnvelope builds a success envelope correlated to a thread.
func NewResultEnvelope(threadID string, result Result) Envelope {
	return Envelope{Protocol: ProtocolVersion, ID: threadID, Result: &result}
}

// NewErrorEnvelope builds a failure envelope correlated to a thread.
func NewErrorEnvelope(threadID string, code int, message string) Envelope {
	return Envelope{Protocol: ProtocolVersion, ID: threadID, Error: &ErrorDetail{Code: code, Message: message}}
}

// IsError reports whether the envelope carries a failure payload.
func (e Envelope) IsError() bool { return e.Error != nil }
