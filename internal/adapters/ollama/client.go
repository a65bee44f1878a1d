// Package ollama implements the generation client against an
// Ollama-compatible HTTP service.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/longregen/refinery/internal/adapters/metrics"
	"github.com/longregen/refinery/internal/domain/models"
)

const (
	// DefaultTimeout applies when a request carries no timeout of its own.
	DefaultTimeout = 120 * time.Second

	// probeTimeout bounds reachability checks that arrive without a deadline.
	probeTimeout = 5 * time.Second
)

// Client talks to an Ollama-compatible generation service. Generate
// performs exactly one outbound call and reports failures inside the
// result; it never retries. Callers that want retries wrap the call
// themselves.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Per-call deadlines come from the request context, so the
		// client itself carries no global timeout.
		httpClient: &http.Client{},
	}
}

// generateResponse is the non-streaming wire shape of /api/generate.
// Durations are nanoseconds.
type generateResponse struct {
	Response        string `json:"response"`
	TotalDuration   int64  `json:"total_duration"`
	LoadDuration    int64  `json:"load_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Generate performs one generation round-trip. The request parameters are
// sent top-level next to model and prompt; streaming is always disabled.
// Services that stream anyway are tolerated: when the body is not a single
// JSON object, it is decoded line by line and the response fragments are
// concatenated in arrival order.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
		"stream": false,
	}
	for k, v := range req.Parameters {
		switch k {
		case "model", "prompt", "stream":
			continue
		}
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return c.fail(req.Model, models.ErrorKindDecode, fmt.Sprintf("encode request: %v", err), 0)
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return c.fail(req.Model, models.ErrorKindNetwork, fmt.Sprintf("create request: %v", err), time.Since(start))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.fail(req.Model, classifyTransportError(ctx, err), err.Error(), time.Since(start))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return c.fail(req.Model, classifyTransportError(ctx, err), fmt.Sprintf("read body: %v", err), latency)
	}

	if resp.StatusCode != http.StatusOK {
		return c.fail(req.Model, models.ErrorKindBadStatus, fmt.Sprintf("HTTP %d", resp.StatusCode), latency)
	}

	decoded, ok := decodeGenerateBody(raw)
	if !ok {
		return c.fail(req.Model, models.ErrorKindDecode, "response body unparsable as JSON or JSON lines", latency)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(req.Model, "ok").Inc()
	metrics.GenerationDuration.WithLabelValues(req.Model).Observe(latency.Seconds())

	return models.GenerationResult{
		Success:        true,
		Response:       decoded.Response,
		Latency:        latency,
		TotalDuration:  time.Duration(decoded.TotalDuration),
		LoadDuration:   time.Duration(decoded.LoadDuration),
		PromptTokens:   decoded.PromptEvalCount,
		ResponseTokens: decoded.EvalCount,
	}
}

func (c *Client) fail(model, kind, detail string, latency time.Duration) models.GenerationResult {
	metrics.GenerationRequestsTotal.WithLabelValues(model, kind).Inc()
	return models.GenerationFailure(kind, detail, latency)
}

// decodeGenerateBody decodes a whole-object body, falling back to
// line-delimited JSON with the response fragments concatenated in order.
// Undecodable lines are skipped; the fallback succeeds when at least one
// line decodes.
func decodeGenerateBody(raw []byte) (generateResponse, bool) {
	var whole generateResponse
	if err := json.Unmarshal(raw, &whole); err == nil {
		return whole, true
	}

	var combined generateResponse
	var sb strings.Builder
	decoded := 0
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var frag generateResponse
		if err := json.Unmarshal(line, &frag); err != nil {
			continue
		}
		decoded++
		sb.WriteString(frag.Response)
		// The final streaming fragment carries the counters.
		if frag.TotalDuration > 0 {
			combined.TotalDuration = frag.TotalDuration
			combined.LoadDuration = frag.LoadDuration
			combined.PromptEvalCount = frag.PromptEvalCount
			combined.EvalCount = frag.EvalCount
		}
	}
	if decoded == 0 {
		return generateResponse{}, false
	}
	combined.Response = sb.String()
	return combined, true
}

// classifyTransportError maps a transport failure onto the error kind
// taxonomy. Deadline expiry counts as timeout whether it surfaces from the
// context or from the connection.
func classifyTransportError(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorKindTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorKindTimeout
	}
	return models.ErrorKindNetwork
}

// Probe checks reachability of the generation service via the model list
// endpoint. Read-only; true iff the service answers 200.
func (c *Client) Probe(ctx context.Context) bool {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the models the service advertises.
func (c *Client) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	var payload struct {
		Models []struct {
			Name       string    `json:"name"`
			Size       int64     `json:"size"`
			ModifiedAt time.Time `json:"modified_at"`
			Details    struct {
				ParameterSize     string `json:"parameter_size"`
				QuantizationLevel string `json:"quantization_level"`
			} `json:"details"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/tags", &payload); err != nil {
		return nil, err
	}

	infos := make([]models.ModelInfo, 0, len(payload.Models))
	for _, m := range payload.Models {
		infos = append(infos, models.ModelInfo{
			Name:          m.Name,
			Size:          m.Size,
			ParameterSize: m.Details.ParameterSize,
			Quantization:  m.Details.QuantizationLevel,
			ModifiedAt:    m.ModifiedAt,
		})
	}
	return infos, nil
}

// LoadedModels returns the models currently resident in service memory.
func (c *Client) LoadedModels(ctx context.Context) ([]models.LoadedModel, error) {
	var payload struct {
		Models []struct {
			Name     string `json:"name"`
			Size     int64  `json:"size"`
			SizeVRAM int64  `json:"size_vram"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/ps", &payload); err != nil {
		return nil, err
	}

	loaded := make([]models.LoadedModel, 0, len(payload.Models))
	for _, m := range payload.Models {
		loaded = append(loaded, models.LoadedModel{
			Name:     m.Name,
			Size:     m.Size,
			SizeVRAM: m.SizeVRAM,
		})
	}
	return loaded, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: HTTP %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
