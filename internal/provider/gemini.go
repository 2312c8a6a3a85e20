package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	tberrors "github.com/lepinkainen/tankobon/internal/errors"
	"github.com/lepinkainen/tankobon/internal/metadata"
)

const (
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	geminiPriority = 1
)

var geminiDefaultModels = []string{"gemini-2.5-flash-lite", "gemini-2.5-pro"}

// Gemini queries the Gemini generateContent REST API. Models are tried in
// order; the next one is used only when the previous answer names nothing.
type Gemini struct {
	client
}

var _ Provider = (*Gemini)(nil)

// NewGemini creates a Gemini provider.
func NewGemini(apiKey string, opts ...Option) *Gemini {
	return &Gemini{client: newClient(apiKey, geminiBaseURL, geminiDefaultModels, opts...)}
}

// Name returns the human-readable name of this provider.
func (g *Gemini) Name() string { return "Gemini" }

// Priority returns the chain position (lower = tried first).
func (g *Gemini) Priority() int { return geminiPriority }

// Kind reports that Gemini answers free-text prompts.
func (g *Gemini) Kind() Kind { return Generative }

// Ping fetches the first model's description.
func (g *Gemini) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models/%s", g.baseURL, url.PathEscape(g.models[0]))
	return g.pingGET(ctx, g.Name(), endpoint, map[string]string{"x-goog-api-key": g.apiKey})
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		ResponseMimeType string  `json:"responseMimeType"`
		Temperature      float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) generate(ctx context.Context, model, prompt string) (string, error) {
	payload := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	payload.GenerationConfig.ResponseMimeType = "application/json"
	payload.GenerationConfig.Temperature = 0.1

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(model))
	req, err := newJSONRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("x-goog-api-key", g.apiKey)

	var resp geminiResponse
	if err := g.doJSON(ctx, g.Name(), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", tberrors.NewMalformedResponseError(g.Name(), "", fmt.Errorf("no candidates in response"))
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}

// completer is a decoded answer that can tell whether it names anything.
type completer interface {
	complete() bool
}

// askModels runs prompt against each model in turn. An empty object or an
// answer without title and author moves on to the next model; the last
// model's answer is returned as is. Errors, malformed answers included, are
// returned at once.
func askModels[T any, P interface {
	*T
	completer
}](ctx context.Context, g *Gemini, prompt string) (*T, error) {
	for i, model := range g.models {
		text, err := g.generate(ctx, model, prompt)
		if err != nil {
			return nil, err
		}
		var answer T
		found, err := decodeAnswer(g.Name(), text, &answer)
		if err != nil {
			return nil, err
		}
		last := i == len(g.models)-1
		if last {
			if !found {
				return nil, nil
			}
			return &answer, nil
		}
		if found && P(&answer).complete() {
			return &answer, nil
		}
		slog.Debug("Incomplete answer, trying next model", "provider", g.Name(), "model", model)
	}
	return nil, nil
}

// Series asks for series-level metadata.
func (g *Gemini) Series(ctx context.Context, name string) (*metadata.Series, error) {
	answer, err := askModels[seriesAnswer](ctx, g, seriesPrompt(name))
	if err != nil || answer == nil {
		return nil, err
	}
	return answer.toSeries(name, g.Name()), nil
}

// Volume asks for metadata of one volume.
func (g *Gemini) Volume(ctx context.Context, series string, number int) (*metadata.Volume, error) {
	answer, err := askModels[volumeAnswer](ctx, g, volumePrompt(series, number))
	if err != nil || answer == nil {
		return nil, err
	}
	return answer.toVolume(series, number, g.Name()), nil
}
