// Package llm summarizes news articles through an OpenAI-compatible API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"

	"hadashot/pkg/config"
	"hadashot/pkg/domain"
)

// maxContentChars bounds how much article content goes into the prompt
const maxContentChars = 1000

// Summarizer produces 3-bullet summaries with sentiment and importance.
// It honors the never-fail collaborator contract: any internal failure
// yields the neutral default summary, not an error.
type Summarizer struct {
	client *openai.Client
	config config.LLMConfig
}

// NewSummarizer creates an LLM summarizer
func NewSummarizer(cfg config.LLMConfig) *Summarizer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	return &Summarizer{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

const systemPrompt = `You are a news analysis assistant that summarizes Israeli news into concise bullet points.`

const promptTemplate = `You are a news analyst specializing in Israeli news.
Analyze the following article and provide exactly 3 bullet points summarizing the key information.
Each bullet point should be concise (max 20 words) and capture the essential information.

Article:
%s

Provide your response in the following JSON format:
{
    "bullets": [
        "bullet 1",
        "bullet 2",
        "bullet 3"
    ],
    "sentiment": "positive/negative/neutral",
    "importance": "high/medium/low"
}
`

// summaryResponse is the wire shape expected back from the model
type summaryResponse struct {
	Bullets    []string `json:"bullets"`
	Sentiment  string   `json:"sentiment"`
	Importance string   `json:"importance"`
}

// Summarize generates a summary for one article. It never returns an error:
// on failure the default summary is returned and the failure is logged.
func (s *Summarizer) Summarize(ctx context.Context, title, description, content string) domain.Summary {
	prompt := fmt.Sprintf(promptTemplate, articleText(title, description, content))

	// retry up to 3 times on malformed JSON
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Temperature: float32(s.config.Temperature),
			MaxTokens:   s.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			lgr.Printf("[WARN] summarize %q failed: %v", title, err)
			return domain.DefaultSummary()
		}
		if len(resp.Choices) == 0 {
			lgr.Printf("[WARN] summarize %q: empty response", title)
			return domain.DefaultSummary()
		}

		summary, err := parseSummary(resp.Choices[0].Message.Content)
		if err != nil {
			lgr.Printf("[DEBUG] summarize %q attempt %d: %v", title, attempt+1, err)
			continue
		}
		return summary
	}

	lgr.Printf("[WARN] summarize %q: no valid JSON after 3 attempts", title)
	return domain.DefaultSummary()
}

// articleText assembles the prompt body from whatever article parts exist
func articleText(title, description, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	if description != "" {
		fmt.Fprintf(&b, "Description: %s\n", description)
	}
	if content != "" {
		// truncate on a rune boundary, articles are often Hebrew
		if runes := []rune(content); len(runes) > maxContentChars {
			content = string(runes[:maxContentChars])
		}
		fmt.Fprintf(&b, "Content: %s", content)
	}
	return b.String()
}

// parseSummary extracts the JSON object from the model output, tolerating
// surrounding prose
func parseSummary(content string) (domain.Summary, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return domain.Summary{}, fmt.Errorf("no json object found in response")
	}

	var parsed summaryResponse
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return domain.Summary{}, fmt.Errorf("failed to parse json: %w", err)
	}

	summary := domain.Summary{
		Bullets:    parsed.Bullets,
		Sentiment:  domain.Sentiment(parsed.Sentiment),
		Importance: domain.Importance(parsed.Importance),
	}
	if len(summary.Bullets) > 3 {
		summary.Bullets = summary.Bullets[:3]
	}
	if summary.Bullets == nil {
		summary.Bullets = []string{}
	}

	switch summary.Sentiment {
	case domain.SentimentPositive, domain.SentimentNegative, domain.SentimentNeutral:
	default:
		summary.Sentiment = domain.SentimentNeutral
	}
	switch summary.Importance {
	case domain.ImportanceHigh, domain.ImportanceMedium, domain.ImportanceLow:
	default:
		summary.Importance = domain.ImportanceMedium
	}

	return summary, nil
}
