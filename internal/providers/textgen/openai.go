package textgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI completes instructions with Chat Completions. It also works against
// OpenAI-compatible gateways through OPENAI_BASE_URL.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAI {
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(append(all, opts...)...)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{client: &client, model: model}
}

func (o *OpenAI) Complete(ctx context.Context, in Instruction) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if in.System != "" {
		messages = append(messages, openai.SystemMessage(in.System))
	}
	messages = append(messages, openai.UserMessage(in.User))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(maxTokens(in)),
		Temperature:         openai.Float(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("openai: response carried no text")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Generator = (*OpenAI)(nil)
