package relay

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"mixer/internal/runtime"
)

// Message is the generic envelope for requests accepted by a relay node.
// The payload is decoded according to the type field.
type Message struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"senderId"`
}

// OperationBytes wraps raw instruction bytes with base64 JSON encoding.
type OperationBytes []byte

// MarshalJSON implements the json.Marshaler interface.
func (o OperationBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + base64.StdEncoding.EncodeToString(o) + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (o *OperationBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string for OperationBytes")
	}
	b, err := base64.StdEncoding.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*o = b
	return nil
}

// WithdrawSubmitPayload asks the relay to submit an encoded Withdraw
// operation on behalf of the sender, paying out to the named recipient.
type WithdrawSubmitPayload struct {
	Operation OperationBytes `json:"operation"`
	Recipient string         `json:"recipient"` // hex account address
}

// SubmitResultPayload is the relay's answer to a submission.
type SubmitResultPayload struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// parseRecipient decodes the hex account address of a payload.
func parseRecipient(s string) (runtime.Address, error) {
	var addr runtime.Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("invalid recipient hex: %w", err)
	}
	if len(b) != len(addr) {
		return addr, fmt.Errorf("recipient must be %d bytes, got %d", len(addr), len(b))
	}
	copy(addr[:], b)
	return addr, nil
}
