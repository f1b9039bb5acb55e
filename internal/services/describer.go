package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	systemPrompt = "You are a person who knows all about this other person's spotify data"
	promptIntro  = "Write exactly what that person would think, act and tell exact clothing from top to bottom that they would wear like using that spotify wrapped data, in 60 words or less:\n\n"

	descriptionTemperature = 0.7
	descriptionMaxTokens   = 100
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIDescriber implements [Describer] with the OpenAI chat completions API.
type OpenAIDescriber struct {
	client chatCompleter
	model  string
}

// NewOpenAIDescriber creates a describer. It is disabled when cfg has no API key.
func NewOpenAIDescriber(cfg shared.OpenAIConfig) *OpenAIDescriber {
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	if cfg.APIKey == "" {
		return &OpenAIDescriber{model: model}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	return &OpenAIDescriber{client: openai.NewClientWithConfig(oc), model: model}
}

// Enabled reports whether an API key was configured.
func (d *OpenAIDescriber) Enabled() bool { return d.client != nil }

// Describe returns a short description of stats written in lang.
func (d *OpenAIDescriber) Describe(ctx context.Context, stats models.WrapStats, lang models.Language) (string, error) {
	if !d.Enabled() {
		return "", shared.ErrServiceDisabled
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(stats, lang)},
		},
		Temperature: descriptionTemperature,
		MaxTokens:   descriptionMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", shared.ErrAPIRequest, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", shared.ErrAPIRequest)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt renders the user prompt for stats. Languages other than English get a single
// instruction to write in that language.
func BuildPrompt(stats models.WrapStats, lang models.Language) string {
	songs := stats.TopSongs
	if len(songs) == 0 {
		songs = []string{models.FallbackSongs}
	}
	artists := stats.TopArtists
	if len(artists) == 0 {
		artists = []string{models.FallbackRestricted}
	}
	genres := stats.TopGenres
	if len(genres) == 0 {
		genres = []string{models.FallbackRestricted}
	}

	var b strings.Builder
	b.WriteString(promptIntro)
	fmt.Fprintf(&b, "Top Songs: %s\n", strings.Join(songs, ", "))
	fmt.Fprintf(&b, "Top Artists: %s\n", strings.Join(artists, ", "))
	fmt.Fprintf(&b, "Top Genres: %s\n", strings.Join(genres, ", "))
	fmt.Fprintf(&b, "Number of Distinct Artists: %d\n", stats.NumDistinctArtists)
	fmt.Fprintf(&b, "Number of Genres: %d\n", stats.NumGenres)

	if lang != models.English {
		fmt.Fprintf(&b, " and write it in %s.", lang.Name())
	}
	return b.String()
}
