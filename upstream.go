package lumengo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultEndpoint is the upstream chat-completions endpoint used when none is
// configured.
const DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// maxResponseBody bounds how much of an upstream body is read.
const maxResponseBody = 10 * 1024 * 1024

type upstreamResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

type upstreamErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// buildPayload flattens the request into the upstream JSON body. Extra fields
// never override the canonical ones.
func buildPayload(req *Request) map[string]any {
	payload := make(map[string]any, len(req.Extra)+5)
	for k, v := range req.Extra {
		payload[k] = v
	}
	payload["model"] = req.Model
	payload["messages"] = req.Messages
	if len(req.Modalities) > 0 {
		payload["modalities"] = req.Modalities
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	return payload
}

// callUpstream performs one attempt against the upstream endpoint under the
// per-attempt deadline. Failures come back as *GatewayError with a kind the
// retry policy can act on.
func (c *Client) callUpstream(ctx context.Context, req *Request, requestID string, attempt int) (*Result, *GatewayError) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(buildPayload(req))
	if err != nil {
		return nil, c.newError(KindInvalidResponse, "failed to encode request payload", err, requestID, attempt, 0)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.newError(KindNetwork, "failed to build upstream request", err, requestID, attempt, 0)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		switch {
		case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
			return nil, c.newError(KindCancelled, "request cancelled", ctx.Err(), requestID, attempt, 0)
		case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			return nil, c.newError(KindTimeout, fmt.Sprintf("attempt exceeded %s deadline", c.timeout), err, requestID, attempt, 0)
		default:
			return nil, c.newError(KindNetwork, "upstream request failed", err, requestID, attempt, 0)
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, c.newError(KindTimeout, fmt.Sprintf("attempt exceeded %s deadline", c.timeout), err, requestID, attempt, 0)
		}
		return nil, c.newError(KindNetwork, "failed to read upstream response", err, requestID, attempt, 0)
	}

	if resp.StatusCode != http.StatusOK {
		kind, retryable := classifyStatus(resp.StatusCode)
		gerr := c.newError(kind, upstreamErrorMessage(raw, resp.StatusCode), nil, requestID, attempt, resp.StatusCode)
		gerr.Retryable = retryable
		if kind == KindRateLimited {
			gerr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, gerr
	}

	var decoded upstreamResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, c.newError(KindInvalidResponse, "upstream returned malformed JSON", err, requestID, attempt, resp.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return nil, c.newError(KindInvalidResponse, "upstream returned no choices", nil, requestID, attempt, resp.StatusCode)
	}

	message := decoded.Choices[0].Message
	result := &Result{
		TextContent: message.Content,
		RequestID:   requestID,
	}
	if decoded.ID != "" {
		result.RequestID = decoded.ID
	}
	if len(message.Images) > 0 {
		result.ImageURL = message.Images[0].ImageURL.URL
	}
	if result.TextContent == "" && result.ImageURL == "" {
		return nil, c.newError(KindInvalidResponse, "upstream returned an empty message", nil, requestID, attempt, resp.StatusCode)
	}

	return result, nil
}

// upstreamErrorMessage extracts a human-readable message from an error body,
// falling back to the HTTP status.
func upstreamErrorMessage(raw []byte, statusCode int) string {
	var body upstreamErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error.Message != "" {
			return body.Error.Message
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("upstream returned status %d", statusCode)
}

func (c *Client) newError(kind ErrorKind, message string, cause error, requestID string, attempt, statusCode int) *GatewayError {
	retryable := false
	switch kind {
	case KindRateLimited, KindServer, KindTimeout, KindNetwork, KindInvalidResponse, KindCircuitOpen:
		retryable = true
	}
	return &GatewayError{
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		RequestID:  requestID,
		Attempt:    attempt,
		MaxRetries: c.maxRetries,
		Cause:      cause,
	}
}
