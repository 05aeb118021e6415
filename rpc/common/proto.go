package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dBind/lib/binding"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
// The json names of the request fields are the ones the HTTP gateway accepts.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	UserID       string   `json:"userId,omitempty"`     // Used for: new, verify, update, del
	ChannelID    string   `json:"gcmId,omitempty"`      // Used for: new, verify, del
	OldChannelID string   `json:"oldGcmId,omitempty"`   // Used for: update
	NewChannelID string   `json:"newGcmId,omitempty"`   // Used for: update
	Code         string   `json:"code,omitempty"`       // Used for: verify
	UserIDs      []string `json:"userIdList,omitempty"` // Used for: query (request and response)

	// Response only fields
	Result  binding.Result `json:"result,omitempty"`  // Used for: new, verify, update responses
	Err     string         `json:"err,omitempty"`     // Empty if no error, otherwise contains the error message
	ErrKind ErrorKind      `json:"errKind,omitempty"` // Class of Err, lets clients tell a retryable conflict from a fault
}

// AsError converts the error fields of a response back into a Go error.
// It returns nil if the message carries no error.
// Conflicts wrap binding.ErrConflict and invalid requests wrap binding.ErrInvalidArgument
// so callers on both sides of the wire can use errors.Is.
func (m *Message) AsError() error {
	if m.Err == "" && m.ErrKind == ErrKindNone {
		return nil
	}
	switch m.ErrKind {
	case ErrKindConflict:
		return fmt.Errorf("%s: %w", m.Err, binding.ErrConflict)
	case ErrKindInvalid:
		return fmt.Errorf("%s: %w", m.Err, binding.ErrInvalidArgument)
	default:
		return fmt.Errorf("rpc %s: %s", m.ErrKind, m.Err)
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewBindNewRequest creates a request that binds channelID to userID
func NewBindNewRequest(userID, channelID string) *Message {
	return &Message{
		MsgType:   MsgTBindNew,
		UserID:    userID,
		ChannelID: channelID,
	}
}

// NewBindVerifyRequest creates a request that confirms a pending binding with its code
func NewBindVerifyRequest(userID, channelID, code string) *Message {
	return &Message{
		MsgType:   MsgTBindVerify,
		UserID:    userID,
		ChannelID: channelID,
		Code:      code,
	}
}

// NewBindUpdateRequest creates a request that moves a verified binding to a new channel id
func NewBindUpdateRequest(userID, oldChannelID, newChannelID string) *Message {
	return &Message{
		MsgType:      MsgTBindUpdate,
		UserID:       userID,
		OldChannelID: oldChannelID,
		NewChannelID: newChannelID,
	}
}

// NewBindDelRequest creates a request that removes a binding
func NewBindDelRequest(userID, channelID string) *Message {
	return &Message{
		MsgType:   MsgTBindDel,
		UserID:    userID,
		ChannelID: channelID,
	}
}

// NewBindQueryRequest creates a request that asks which of userIDs have a binding
func NewBindQueryRequest(userIDs []string) *Message {
	return &Message{
		MsgType: MsgTBindQuery,
		UserIDs: userIDs,
	}
}

// NewResultResponse creates the response for new, verify and update
func NewResultResponse(msgType MessageType, result binding.Result, err error) *Message {
	resp := &Message{MsgType: msgType}
	if err != nil {
		resp.setError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// NewBindDelResponse creates the response for del
func NewBindDelResponse(err error) *Message {
	resp := &Message{MsgType: MsgTBindDel}
	resp.setError(err)
	return resp
}

// NewBindQueryResponse creates the response for query. The list is never nil on success.
func NewBindQueryResponse(userIDs []string, err error) *Message {
	resp := &Message{MsgType: MsgTBindQuery}
	if err != nil {
		resp.setError(err)
		return resp
	}
	if userIDs == nil {
		userIDs = []string{}
	}
	resp.UserIDs = userIDs
	return resp
}

// NewErrorResponse creates a generic error response of the given kind
func NewErrorResponse(kind ErrorKind, msg string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     msg,
		ErrKind: kind,
	}
}

func (m *Message) setError(err error) {
	if err == nil {
		return
	}
	m.Err = err.Error()
	switch {
	case errors.Is(err, binding.ErrConflict):
		m.ErrKind = ErrKindConflict
	case errors.Is(err, binding.ErrInvalidArgument):
		m.ErrKind = ErrKindInvalid
	default:
		m.ErrKind = ErrKindInternal
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTBindNew:
		return "bindNew"
	case MsgTBindVerify:
		return "bindVerify"
	case MsgTBindUpdate:
		return "bindUpdate"
	case MsgTBindDel:
		return "bindDel"
	case MsgTBindQuery:
		return "bindQuery"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Op returns the short operation name used in gateway paths and metric labels
// ("new", "verify", ...). Non binding types return their String form.
func (t MessageType) Op() string {
	for op, mt := range gatewayOps {
		if mt == t {
			return op
		}
	}
	return t.String()
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "bindNew":
		*t = MsgTBindNew
	case "bindVerify":
		*t = MsgTBindVerify
	case "bindUpdate":
		*t = MsgTBindUpdate
	case "bindDel":
		*t = MsgTBindDel
	case "bindQuery":
		*t = MsgTBindQuery
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	case "unknown":
		*t = MsgTUnknown
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Binding operations

	MsgTBindNew    // Bind a channel id to a user, issue a code
	MsgTBindVerify // Confirm a pending binding
	MsgTBindUpdate // Move a verified binding to a new channel id
	MsgTBindDel    // Remove a binding
	MsgTBindQuery  // Filter user ids down to those with a binding
)

// gatewayOps maps the operation names of the HTTP gateway to message types
var gatewayOps = map[string]MessageType{
	"new":    MsgTBindNew,
	"verify": MsgTBindVerify,
	"update": MsgTBindUpdate,
	"del":    MsgTBindDel,
	"query":  MsgTBindQuery,
}

// MessageTypeForOp returns the message type for a gateway operation name
func MessageTypeForOp(op string) (MessageType, bool) {
	t, ok := gatewayOps[op]
	return t, ok
}

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// ErrorKind classifies the error carried by a response
type ErrorKind uint8

const (
	ErrKindNone        ErrorKind = iota
	ErrKindInternal              // store fault or any other unexpected failure
	ErrKindInvalid               // malformed request or missing field
	ErrKindConflict              // a concurrent request won, the request may be resent
	ErrKindNoShard               // the addressed shard does not exist on this server
	ErrKindUnsupported           // the message type is not handled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindNone:
		return "none"
	case ErrKindInternal:
		return "internal"
	case ErrKindInvalid:
		return "invalid"
	case ErrKindConflict:
		return "conflict"
	case ErrKindNoShard:
		return "noShard"
	case ErrKindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *ErrorKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for candidate := ErrKindNone; candidate <= ErrKindUnsupported; candidate++ {
		if candidate.String() == s {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown error kind: %s", s)
}
