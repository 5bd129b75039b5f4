package provider

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/codewright/codewright/internal/chat"
)

// openaiAdapter speaks the OpenAI-compatible chat completions dialect.
// Authentication is a bearer header from the API key; without a key the
// request carries no Authorization header at all, which is what local
// servers (Ollama) expect. DeepSeek, Moonshot, and OpenRouter all speak
// this dialect behind their own base URLs.
type openaiAdapter struct {
	client openai.Client
	cfg    Config
}

func newOpenAIAdapter(cfg Config) *openaiAdapter {
	// SDK-internal retries are disabled: the Client owns retry policy.
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		// Pin the key to empty so the SDK does not fall back to
		// OPENAI_API_KEY from the environment, then strip the bare
		// "Bearer" header it would still emit.
		opts = append(opts,
			option.WithAPIKey(""),
			option.WithMiddleware(dropAuthHeader),
		)
	}
	return &openaiAdapter{client: openai.NewClient(opts...), cfg: cfg}
}

func dropAuthHeader(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	req.Header.Del("Authorization")
	return next(req)
}

func (a *openaiAdapter) send(ctx context.Context, req chat.ChatRequest, onDelta func(string)) (*chat.ChatResponse, error) {
	params := a.buildParams(req)

	if onDelta != nil {
		return a.sendStreaming(ctx, params, onDelta)
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(a.cfg.ID, err)
	}
	if len(completion.Choices) == 0 {
		return nil, &ClassifiedError{
			Type:     ErrMalformedResponse,
			Provider: a.cfg.ID,
			Message:  "response contains no choices",
		}
	}

	choice := completion.Choices[0]
	return &chat.ChatResponse{
		Message:      parseOpenAIMessage(choice.Message.Content, choice.Message.ToolCalls),
		FinishReason: string(choice.FinishReason),
		Usage: chat.TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

// sendStreaming consumes the chunk stream and folds it into one assembled
// response. Chunks are accumulated in arrival order; partial state never
// leaves the adapter.
func (a *openaiAdapter) sendStreaming(ctx context.Context, params openai.ChatCompletionNewParams, onDelta func(string)) (*chat.ChatResponse, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, classify(a.cfg.ID, err)
	}
	if len(acc.Choices) == 0 {
		return nil, &ClassifiedError{
			Type:     ErrMalformedResponse,
			Provider: a.cfg.ID,
			Message:  "stream ended without a terminal chunk",
		}
	}

	choice := acc.Choices[0]
	return &chat.ChatResponse{
		Message:      parseOpenAIMessage(choice.Message.Content, choice.Message.ToolCalls),
		FinishReason: string(choice.FinishReason),
		Usage: chat.TokenUsage{
			PromptTokens:     int(acc.Usage.PromptTokens),
			CompletionTokens: int(acc.Usage.CompletionTokens),
			TotalTokens:      int(acc.Usage.TotalTokens),
		},
	}, nil
}

// buildParams maps the neutral request onto the OpenAI wire shape. The full
// history is sent on every call; roles map one-to-one.
func (a *openaiAdapter) buildParams(req chat.ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.cfg.Model),
		Temperature: openai.Float(a.cfg.Temperature),
	}
	if a.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(a.cfg.MaxTokens))
	}

	for _, msg := range req.Messages {
		var param openai.ChatCompletionMessageParamUnion
		switch msg.Role {
		case chat.RoleSystem:
			param = openai.SystemMessage(msg.Content)
		case chat.RoleAssistant:
			param = openai.AssistantMessage(msg.Content)
			param.OfAssistant.ToolCalls = openAIToolCallParams(msg.ToolCalls)
		case chat.RoleTool:
			param = openai.ToolMessage(msg.Content, msg.ToolCallID)
		default:
			param = openai.UserMessage(msg.Content)
		}
		params.Messages = append(params.Messages, param)
	}

	for _, def := range req.Tools {
		var schema openai.FunctionParameters
		json.Unmarshal(def.Parameters, &schema) //nolint:errcheck // schemas are static literals
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  schema,
			},
		))
	}

	return params
}

// openAIToolCallParams reattaches stored assistant tool calls to the wire
// request so follow-up turns carry the full exchange.
func openAIToolCallParams(calls []chat.ToolCall) []openai.ChatCompletionMessageToolCallUnionParam {
	var out []openai.ChatCompletionMessageToolCallUnionParam
	for _, call := range calls {
		out = append(out, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			},
		})
	}
	return out
}

// parseOpenAIMessage converts a wire assistant message into the neutral
// shape. Some OpenAI-compatible local servers omit tool-call IDs; those are
// synthesized so results can be matched back.
func parseOpenAIMessage(content string, toolCalls []openai.ChatCompletionMessageToolCallUnion) chat.Message {
	msg := chat.Message{Role: chat.RoleAssistant, Content: content}
	for _, tc := range toolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}
