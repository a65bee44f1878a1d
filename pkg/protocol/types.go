// Package protocol defines the refinery real-time binary protocol for
// streaming refinement run progress between the server and clients over
// WebSocket. Envelopes are serialized using MessagePack.
package protocol

// MessageType represents the type of protocol message
type MessageType uint16

const (
	// TypeError (1) - Error notification
	TypeError MessageType = 1
	// TypeServerInfo (2) - Server hello after the connection is established
	TypeServerInfo MessageType = 2
	// TypeSubscribe (3) - Client subscribes to a run's progress feed
	TypeSubscribe MessageType = 3
	// TypeSubscribeAck (4) - Server acknowledges subscription
	TypeSubscribeAck MessageType = 4
	// TypeUnsubscribe (5) - Client unsubscribes from a run
	TypeUnsubscribe MessageType = 5
	// TypeUnsubscribeAck (6) - Server acknowledges unsubscription
	TypeUnsubscribeAck MessageType = 6
	// TypeRunProgress (7) - Refinement progress update
	TypeRunProgress MessageType = 7
)

// String returns the string representation of the message type
func (t MessageType) String() string {
	switch t {
	case TypeError:
		return "Error"
	case TypeServerInfo:
		return "ServerInfo"
	case TypeSubscribe:
		return "Subscribe"
	case TypeSubscribeAck:
		return "SubscribeAck"
	case TypeUnsubscribe:
		return "Unsubscribe"
	case TypeUnsubscribeAck:
		return "UnsubscribeAck"
	case TypeRunProgress:
		return "RunProgress"
	default:
		return "Unknown"
	}
}

// Severity levels for error messages
type Severity int32

const (
	SeverityInfo     Severity = 0
	SeverityWarning  Severity = 1
	SeverityError    Severity = 2
	SeverityCritical Severity = 3
)
