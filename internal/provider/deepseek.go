package provider

import (
	"context"
	"fmt"
	"net/http"

	tberrors "github.com/lepinkainen/tankobon/internal/errors"
	"github.com/lepinkainen/tankobon/internal/metadata"
)

const (
	deepSeekBaseURL  = "https://api.deepseek.com"
	deepSeekModel    = "deepseek-chat"
	deepSeekPriority = 0
)

// DeepSeek queries the DeepSeek chat completions API in JSON mode.
type DeepSeek struct {
	client
}

var (
	_ Provider  = (*DeepSeek)(nil)
	_ Suggester = (*DeepSeek)(nil)
)

// NewDeepSeek creates a DeepSeek provider.
func NewDeepSeek(apiKey string, opts ...Option) *DeepSeek {
	return &DeepSeek{client: newClient(apiKey, deepSeekBaseURL, []string{deepSeekModel}, opts...)}
}

// Name returns the human-readable name of this provider.
func (d *DeepSeek) Name() string { return "DeepSeek" }

// Priority returns the chain position (lower = tried first).
func (d *DeepSeek) Priority() int { return deepSeekPriority }

// Kind reports that DeepSeek answers free-text prompts.
func (d *DeepSeek) Kind() Kind { return Generative }

// Ping lists the available models, which checks the API key.
func (d *DeepSeek) Ping(ctx context.Context) error {
	return d.pingGET(ctx, d.Name(), d.baseURL+"/models", map[string]string{
		"Authorization": "Bearer " + d.apiKey,
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (d *DeepSeek) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: d.models[0],
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.1,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	req, err := newJSONRequest(ctx, http.MethodPost, d.baseURL+"/chat/completions", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	var resp chatResponse
	if err := d.doJSON(ctx, d.Name(), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", tberrors.NewMalformedResponseError(d.Name(), "", fmt.Errorf("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Series asks for series-level metadata.
func (d *DeepSeek) Series(ctx context.Context, name string) (*metadata.Series, error) {
	text, err := d.complete(ctx, seriesPrompt(name))
	if err != nil {
		return nil, err
	}
	var answer seriesAnswer
	found, err := decodeAnswer(d.Name(), text, &answer)
	if err != nil || !found {
		return nil, err
	}
	return answer.toSeries(name, d.Name()), nil
}

// Volume asks for metadata of one volume.
func (d *DeepSeek) Volume(ctx context.Context, series string, number int) (*metadata.Volume, error) {
	text, err := d.complete(ctx, volumePrompt(series, number))
	if err != nil {
		return nil, err
	}
	var answer volumeAnswer
	found, err := decodeAnswer(d.Name(), text, &answer)
	if err != nil || !found {
		return nil, err
	}
	return answer.toVolume(series, number, d.Name()), nil
}

// SuggestNames asks for likely official names of a misspelled series.
func (d *DeepSeek) SuggestNames(ctx context.Context, name string) ([]string, error) {
	text, err := d.complete(ctx, suggestionPrompt(name))
	if err != nil {
		return nil, err
	}
	var answer suggestionAnswer
	found, err := decodeAnswer(d.Name(), text, &answer)
	if err != nil || !found {
		return nil, err
	}
	return metadata.CleanList(answer.Suggestions), nil
}
