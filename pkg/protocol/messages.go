package protocol

// ErrorMessage (Type 1) conveys errors and exceptional conditions
type ErrorMessage struct {
	Code        int32    `msgpack:"code" json:"code"`
	Message     string   `msgpack:"message" json:"message"`
	Severity    Severity `msgpack:"severity" json:"severity"`
	Recoverable bool     `msgpack:"recoverable" json:"recoverable"`
}

// Error codes
const (
	// Format and protocol errors (100-199)
	ErrCodeMalformedData = 101
	ErrCodeUnknownType   = 102

	// Run errors (200-299)
	ErrCodeRunNotFound  = 201
	ErrCodeInvalidState = 202

	// Server errors (500-599)
	ErrCodeInternalError      = 501
	ErrCodeServiceUnavailable = 503
)

// ServerInfo (Type 2) greets a client once the connection is established
type ServerInfo struct {
	Version   string `msgpack:"version" json:"version"`
	Timestamp int64  `msgpack:"timestamp" json:"timestamp"`
}

// Subscribe (Type 3) subscribes the client to a run's progress feed
type Subscribe struct {
	RunID string `msgpack:"runId" json:"runId"`
}

// SubscribeAck (Type 4) confirms a subscription. Status reports the run's
// current state so late subscribers know where the run stands.
type SubscribeAck struct {
	RunID   string `msgpack:"runId" json:"runId"`
	Success bool   `msgpack:"success" json:"success"`
	Status  string `msgpack:"status,omitempty" json:"status,omitempty"`
}

// Unsubscribe (Type 5) removes the client from a run's progress feed
type Unsubscribe struct {
	RunID string `msgpack:"runId" json:"runId"`
}

// UnsubscribeAck (Type 6) confirms an unsubscription
type UnsubscribeAck struct {
	RunID   string `msgpack:"runId" json:"runId"`
	Success bool   `msgpack:"success" json:"success"`
}

// RunProgress (Type 7) carries one refinement progress update. Event is
// one of: started, round, accepted, rejected, completed, failed.
type RunProgress struct {
	RunID         string  `msgpack:"runId" json:"runId"`
	Event         string  `msgpack:"event" json:"event"`
	Round         int     `msgpack:"round" json:"round"`
	MaxIterations int     `msgpack:"maxIterations" json:"maxIterations"`
	CurrentScore  float64 `msgpack:"currentScore" json:"currentScore"`
	BestScore     float64 `msgpack:"bestScore" json:"bestScore"`
	Prompt        string  `msgpack:"prompt,omitempty" json:"prompt,omitempty"`
	Status        string  `msgpack:"status" json:"status"`
	Message       string  `msgpack:"message,omitempty" json:"message,omitempty"`
	Timestamp     string  `msgpack:"timestamp" json:"timestamp"`
}
