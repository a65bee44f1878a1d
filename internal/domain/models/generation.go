package models

import (
	"time"
)

// Error kinds carried by a failed GenerationResult. A failed call reports
// exactly one of these; failures are data, never panics or error returns.
const (
	ErrorKindNetwork   = "network_error"
	ErrorKindBadStatus = "bad_status"
	ErrorKindDecode    = "decode_error"
	ErrorKindTimeout   = "timeout"
)

// GenerationRequest describes a single call to the generation service.
// Constructed per call and never mutated.
type GenerationRequest struct {
	Model      string         `json:"model"`
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Timeout    time.Duration  `json:"-"`
}

// GenerationResult is the outcome of exactly one generation call. On failure
// Success is false and ErrorKind holds one of the ErrorKind constants; the
// result is still a well-formed value, not an error.
type GenerationResult struct {
	Success        bool          `json:"success"`
	Response       string        `json:"response,omitempty"`
	Latency        time.Duration `json:"-"`
	TotalDuration  time.Duration `json:"-"`
	LoadDuration   time.Duration `json:"-"`
	PromptTokens   int           `json:"prompt_tokens,omitempty"`
	ResponseTokens int           `json:"response_tokens,omitempty"`
	ErrorKind      string        `json:"error_kind,omitempty"`
	ErrorDetail    string        `json:"error_detail,omitempty"`
}

// ResponseLength returns the byte length of the response text.
func (r GenerationResult) ResponseLength() int {
	return len(r.Response)
}

// GenerationFailure builds a failed result for the given error kind.
func GenerationFailure(kind, detail string, latency time.Duration) GenerationResult {
	return GenerationResult{
		Success:     false,
		Latency:     latency,
		ErrorKind:   kind,
		ErrorDetail: detail,
	}
}

// ModelInfo describes a model advertised by the generation service.
type ModelInfo struct {
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	ParameterSize string    `json:"parameter_size,omitempty"`
	Quantization  string    `json:"quantization,omitempty"`
	ModifiedAt    time.Time `json:"modified_at"`
}

// LoadedModel describes a model currently resident in service memory,
// including how much of it sits in VRAM.
type LoadedModel struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	SizeVRAM int64  `json:"size_vram"`
}
