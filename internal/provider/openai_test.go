package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codewright/codewright/internal/chat"
	"github.com/codewright/codewright/internal/config"
)

// wireRequest mirrors the OpenAI chat completions request body for
// assertions against what the adapter actually sends.
type wireRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role       string `json:"role"`
		Content    any    `json:"content"`
		ToolCallID string `json:"tool_call_id"`
		ToolCalls  []struct {
			ID       string `json:"id"`
			Function struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		} `json:"function"`
	} `json:"tools"`
}

func TestOpenAIAdapter_RequestShape(t *testing.T) {
	var captured wireRequest

	client := newOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionJSON("ok", "stop"))
	})

	history := []chat.Message{
		{Role: chat.RoleSystem, Content: "be helpful"},
		{Role: chat.RoleUser, Content: "list my files"},
		{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{
			{ID: "call_1", Name: "list_directory", Arguments: `{"path":"."}`},
		}},
		{Role: chat.RoleTool, Content: "main.go", ToolCallID: "call_1"},
	}
	tools := []chat.ToolDefinition{{
		Name:        "list_directory",
		Description: "List directory entries",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`),
	}}

	if _, err := client.Send(context.Background(), chat.ChatRequest{Messages: history, Tools: tools}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if captured.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", captured.Model)
	}
	if len(captured.Messages) != 4 {
		t.Fatalf("expected 4 wire messages, got %d", len(captured.Messages))
	}
	// System messages stay inline in this dialect.
	if captured.Messages[0].Role != "system" {
		t.Errorf("expected inline system message, got role %q", captured.Messages[0].Role)
	}
	assistant := captured.Messages[2]
	if assistant.Role != "assistant" || len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected assistant message with 1 tool call, got %+v", assistant)
	}
	if assistant.ToolCalls[0].Function.Name != "list_directory" {
		t.Errorf("expected tool call list_directory, got %q", assistant.ToolCalls[0].Function.Name)
	}
	if captured.Messages[3].Role != "tool" || captured.Messages[3].ToolCallID != "call_1" {
		t.Errorf("expected tool message bound to call_1, got %+v", captured.Messages[3])
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "list_directory" {
		t.Fatalf("expected 1 declared tool, got %+v", captured.Tools)
	}
	if captured.Tools[0].Function.Parameters["type"] != "object" {
		t.Errorf("tool parameter schema not carried: %+v", captured.Tools[0].Function.Parameters)
	}
}

func TestOpenAIAdapter_AuthHeader(t *testing.T) {
	var header []string
	client := newOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Values("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionJSON("ok", "stop"))
	})

	if _, err := client.Send(context.Background(), chat.ChatRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(header) != 1 || header[0] != "Bearer test-key" {
		t.Errorf("expected bearer auth from the configured key, got %v", header)
	}
}

func TestOpenAIAdapter_NoKeySendsNoAuthHeader(t *testing.T) {
	headerPresent := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, headerPresent = r.Header["Authorization"]
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionJSON("ok", "stop"))
	}))
	t.Cleanup(srv.Close)

	// Keyless configuration, the local-server case (Ollama).
	client, err := NewClient(Config{
		ID:      "ollama",
		Dialect: config.DialectOpenAI,
		BaseURL: srv.URL,
		Model:   "llama3",
	}, WithSleepFunc(noSleep))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.Send(context.Background(), chat.ChatRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if headerPresent {
		t.Error("request without a configured key must not carry an Authorization header")
	}
}

func TestOpenAIAdapter_StreamingAccumulatesDeltas(t *testing.T) {
	var deltas []string
	client := newOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"id":"chatcmpl-s","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Two "}}]}

data: {"id":"chatcmpl-s","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"files."}}]}

data: {"id":"chatcmpl-s","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":8,"total_tokens":20}}

data: [DONE]

`))
	}, WithStreamFunc(func(s string) { deltas = append(deltas, s) }))

	resp, err := client.Send(context.Background(), chat.ChatRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got := strings.Join(deltas, ""); got != "Two files." {
		t.Errorf("deltas = %v, want the full text in order", deltas)
	}
	if resp.Message.Content != "Two files." {
		t.Errorf("assembled content = %q", resp.Message.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("usage = %+v, want totals from the terminal chunk", resp.Usage)
	}
}

func TestOpenAIAdapter_ParsesTextAndToolCalls(t *testing.T) {
	client := newOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "Checking your files.",
					"tool_calls": [
						{"id": "call_a", "type": "function", "function": {"name": "list_directory", "arguments": "{\"path\":\".\"}"}},
						{"id": "call_b", "type": "function", "function": {"name": "read_file", "arguments": "{\"path\":\"go.mod\"}"}}
					]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	})

	resp, err := client.Send(context.Background(), chat.ChatRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Text and tool calls can arrive together; both surface.
	if resp.Message.Content != "Checking your files." {
		t.Errorf("expected text alongside tool calls, got %q", resp.Message.Content)
	}
	if len(resp.Message.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.Message.ToolCalls))
	}
	if resp.Message.ToolCalls[0].ID != "call_a" || resp.Message.ToolCalls[0].Name != "list_directory" {
		t.Errorf("unexpected first tool call: %+v", resp.Message.ToolCalls[0])
	}
	if resp.Message.ToolCalls[1].Arguments != `{"path":"go.mod"}` {
		t.Errorf("unexpected second tool call arguments: %q", resp.Message.ToolCalls[1].Arguments)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("expected finish_reason tool_calls, got %q", resp.FinishReason)
	}
}

func TestOpenAIAdapter_SynthesizesMissingToolCallIDs(t *testing.T) {
	client := newOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"tool_calls": [{"id": "", "type": "function", "function": {"name": "echo", "arguments": "{}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	})

	resp, err := client.Send(context.Background(), chat.ChatRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].ID == "" {
		t.Errorf("expected synthesized tool call ID, got %+v", resp.Message.ToolCalls)
	}
}
