package provider

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codewright/codewright/internal/chat"
)

const defaultAnthropicMaxTokens = 4096

// anthropicAdapter speaks the Anthropic messages dialect. Authentication
// uses the x-api-key header (set by the SDK), system-role messages are
// extracted into the top-level system field, and tool calls travel as
// tool_use / tool_result content blocks rather than dedicated roles.
type anthropicAdapter struct {
	client anthropic.Client
	cfg    Config
}

func newAnthropicAdapter(cfg Config) *anthropicAdapter {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	return &anthropicAdapter{client: anthropic.NewClient(opts...), cfg: cfg}
}

func (a *anthropicAdapter) send(ctx context.Context, req chat.ChatRequest, onDelta func(string)) (*chat.ChatResponse, error) {
	params := a.buildParams(req)

	var msg anthropic.Message
	if onDelta != nil {
		stream := a.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			if err := msg.Accumulate(event); err != nil {
				return nil, &ClassifiedError{
					Type:     ErrMalformedResponse,
					Provider: a.cfg.ID,
					Message:  "accumulate stream event: " + err.Error(),
				}
			}
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
					onDelta(delta.Text)
				}
			}
		}
		if err := stream.Err(); err != nil {
			return nil, classify(a.cfg.ID, err)
		}
	} else {
		resp, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return nil, classify(a.cfg.ID, err)
		}
		msg = *resp
	}

	return a.parseMessage(msg)
}

// buildParams maps the neutral request onto the Anthropic wire shape.
func (a *anthropicAdapter) buildParams(req chat.ChatRequest) anthropic.MessageNewParams {
	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens // required by the messages API
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(a.cfg.Temperature),
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleSystem:
			// System prompts live in a top-level field, not the message array.
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})

		case chat.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: json.RawMessage(call.Arguments),
					},
				})
			}
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))

		case chat.RoleTool:
			// Tool results are user-role tool_result blocks keyed by use ID.
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: msg.ToolCallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: msg.Content},
						}},
					},
				},
			))

		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	for _, def := range req.Tools {
		var schema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		json.Unmarshal(def.Parameters, &schema) //nolint:errcheck // schemas are static literals

		tool := anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
			Required:   schema.Required,
		}, def.Name)
		if def.Description != "" {
			tool.OfTool.Description = anthropic.String(def.Description)
		}
		params.Tools = append(params.Tools, tool)
	}

	return params
}

// parseMessage converts an Anthropic message into the neutral shape: text
// blocks concatenate into the content, tool_use blocks become tool calls.
func (a *anthropicAdapter) parseMessage(msg anthropic.Message) (*chat.ChatResponse, error) {
	if len(msg.Content) == 0 && msg.StopReason == "" {
		return nil, &ClassifiedError{
			Type:     ErrMalformedResponse,
			Provider: a.cfg.ID,
			Message:  "response contains no content blocks",
		}
	}

	out := chat.Message{Role: chat.RoleAssistant}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}

	return &chat.ChatResponse{
		Message:      out,
		FinishReason: string(msg.StopReason),
		Usage: chat.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}
