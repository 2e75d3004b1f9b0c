package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	MsgAgentFailure = "Something went wrong. Please try again."
	MsgNetworkError = "Network error. Please check your connection and try again."
)

type AgentFailureKind int

const (
	// AgentFailureApplication: the agent answered but reported failure or omitted its result.
	AgentFailureApplication AgentFailureKind = iota
	// AgentFailureNetwork: the request itself could not complete.
	AgentFailureNetwork
)

func (k AgentFailureKind) String() string {
	if k == AgentFailureNetwork {
		return "network"
	}
	return "application"
}

// AgentError carries a message that is safe to show to the customer.
type AgentError struct {
	Kind    AgentFailureKind
	Message string
	Err     error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s failure: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("agent %s failure: %s", e.Kind, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// AgentReply is a successful agent answer. Result keeps the agent's own field spelling.
type AgentReply struct {
	Status string
	Result map[string]interface{}
}

// AgentSubmitter is what the order flow needs from the agent gateway.
type AgentSubmitter interface {
	SubmitOrder(ctx context.Context, message, agentID string) (*AgentReply, error)
}

// AgentClient posts order text to the external agent endpoint. One attempt per call.
type AgentClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAgentClient(baseURL, apiKey string, timeout time.Duration) *AgentClient {
	if apiKey == "" {
		log.Warn().Msg("⚠️ Agent: API key is empty, requests go out unauthenticated")
	}
	return &AgentClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type agentRequest struct {
	Message string `json:"message"`
	AgentID string `json:"agent_id"`
}

func (ac *AgentClient) SubmitOrder(ctx context.Context, message, agentID string) (*AgentReply, error) {
	requestBody, err := json.Marshal(agentRequest{Message: message, AgentID: agentID})
	if err != nil {
		return nil, &AgentError{Kind: AgentFailureApplication, Message: MsgAgentFailure, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.baseURL, bytes.NewReader(requestBody))
	if err != nil {
		return nil, &AgentError{Kind: AgentFailureNetwork, Message: MsgNetworkError, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if ac.apiKey != "" {
		httpReq.Header.Set("x-api-key", ac.apiKey)
	}

	log.Info().Str("agent_id", agentID).Int("message_bytes", len(message)).Msg("🤖 Agent: sending order")

	start := time.Now()
	resp, err := ac.client.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Agent: request failed")
		return nil, &AgentError{Kind: AgentFailureNetwork, Message: MsgNetworkError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Agent: failed to read response")
		return nil, &AgentError{Kind: AgentFailureNetwork, Message: MsgNetworkError, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	log.Info().Int("status", resp.StatusCode).Dur("latency", time.Since(start)).Msg("🤖 Agent: response received")

	reply, err := parseAgentEnvelope(body)
	if err != nil {
		if resp.StatusCode != http.StatusOK {
			log.Warn().Int("status", resp.StatusCode).Str("body", preview(body, 300)).Msg("⚠️ Agent: error response")
		}
		return nil, err
	}
	return reply, nil
}

// parseAgentEnvelope accepts {"success": true, "response": {"result": {...}}}.
// Anything else is an application failure with the best message the body offers.
func parseAgentEnvelope(body []byte) (*AgentReply, error) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &AgentError{Kind: AgentFailureApplication, Message: MsgAgentFailure, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	success, _ := envelope["success"].(bool)
	response, _ := envelope["response"].(map[string]interface{})
	result := asObject(response["result"])

	if success && result != nil {
		status, _ := response["status"].(string)
		return &AgentReply{Status: status, Result: result}, nil
	}

	message := firstNonEmpty(asString(envelope["error"]), asString(response["message"]))
	if message == "" {
		message = MsgAgentFailure
	}
	return nil, &AgentError{Kind: AgentFailureApplication, Message: message}
}

// asObject accepts an object or a string holding a JSON object.
func asObject(v interface{}) map[string]interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return val
	case string:
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(val)), &decoded); err == nil {
			return decoded
		}
	}
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func preview(body []byte, limit int) string {
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
