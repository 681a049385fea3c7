package narration

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const narratorPrompt = `You narrate folk stories about Indian heritage monuments for listeners.
Rewrite the story the user sends as a spoken narration script in %s.
Keep names of places and people intact. Reply with the narration only.`

// OpenAIClient produces narration scripts with an OpenAI-compatible chat model.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client for model. baseURL may be empty to use the default endpoint.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("narration: openai api key missing")
	}
	if model == "" {
		return nil, errors.New("narration: openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}, nil
}

// Synthesize asks the model for a narration of req.Text in req.Language.
func (o *OpenAIClient) Synthesize(ctx context.Context, req Request) (*Result, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(narratorPrompt, req.Language.Label())),
			openai.UserMessage(req.Text),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrMalformedResponse)
	}
	return &Result{Text: resp.Choices[0].Message.Content}, nil
}
