package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
)

// #region config
// OpenAIConfig configures the OpenAI drafter.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// #endregion config

// #region openai
// OpenAI drafts brief prose with a chat completion constrained to JSON.
type OpenAI struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAI creates an OpenAI drafter.
func NewOpenAI(config OpenAIConfig) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	cc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cc.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &OpenAI{client: openai.NewClientWithConfig(cc), config: config}, nil
}

const systemPrompt = `You write pre-meeting intelligence briefs from an evidence list.
Rules:
- Every claim carries exactly one tag from the allowed list and cites the evidence IDs it relies on.
- Never use a tag outside the allowed list.
- A verified-* tag requires at least one cited evidence ID of that class.
- A strategic-model section sets "strategic": true and lists in "derived_from" the tags of the evidence it derives from.
- Say "unknown" instead of guessing.
Reply with JSON: {"sections":[{"heading":"","strategic":false,"derived_from":[],"claims":[{"text":"","tag":"","evidence_ids":[]}]}]}`

// Draft asks the model for sections. Claims with unparseable tags are
// dropped; filtering by mode happens downstream.
func (o *OpenAI) Draft(ctx context.Context, in Input) (Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(in)},
		},
		MaxTokens:      o.config.MaxTokens,
		Temperature:    0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return Draft{}, fmt.Errorf("openai draft: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Draft{}, fmt.Errorf("openai draft: no choices")
	}
	return ParseDraft(resp.Choices[0].Message.Content)
}

// #endregion openai

// #region prompt
// BuildPrompt lists the subject, the allowed tags and every evidence node.
func BuildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", in.Subject.Name)
	if in.Subject.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", in.Subject.Company)
	}
	if in.Topic != "" {
		fmt.Fprintf(&b, "Meeting topic: %s\n", in.Topic)
	}
	if !in.MeetingAt.IsZero() {
		fmt.Fprintf(&b, "Meeting time: %s\n", in.MeetingAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Mode: %s (entity lock %d/100)\n", in.Mode, in.LockScore)

	tags := make([]string, len(in.Allowed))
	for i, t := range in.Allowed {
		tags[i] = t.String()
	}
	fmt.Fprintf(&b, "Allowed tags: %s\n\nEvidence:\n", strings.Join(tags, ", "))

	if in.Graph != nil {
		for _, n := range in.Graph.Nodes() {
			fmt.Fprintf(&b, "- [%s] (%s) %s", n.ID(), n.Tag(), n.Excerpt())
			if n.URL() != "" {
				fmt.Fprintf(&b, " <%s>", n.URL())
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// #endregion prompt

// #region parse
type rawDraft struct {
	Sections []struct {
		Heading     string   `json:"heading"`
		Strategic   bool     `json:"strategic"`
		DerivedFrom []string `json:"derived_from"`
		Claims      []struct {
			Text        string   `json:"text"`
			Tag         string   `json:"tag"`
			EvidenceIDs []string `json:"evidence_ids"`
		} `json:"claims"`
	} `json:"sections"`
	Coverage *float64 `json:"coverage"`
}

// ParseDraft decodes the JSON draft format shared by remote synthesizers.
func ParseDraft(content string) (Draft, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw rawDraft
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}

	d := Draft{Coverage: raw.Coverage}
	for _, rs := range raw.Sections {
		sec := Section{Heading: strings.TrimSpace(rs.Heading), Strategic: rs.Strategic}
		for _, df := range rs.DerivedFrom {
			if t, err := evidence.ParseTag(df); err == nil {
				sec.DerivedFrom = append(sec.DerivedFrom, t)
			}
		}
		for _, rc := range rs.Claims {
			t, err := evidence.ParseTag(rc.Tag)
			if err != nil || strings.TrimSpace(rc.Text) == "" {
				continue
			}
			sec.Claims = append(sec.Claims, Claim{Text: strings.TrimSpace(rc.Text), Tag: t, EvidenceIDs: rc.EvidenceIDs})
		}
		d.Sections = append(d.Sections, sec)
	}
	return d, nil
}

// #endregion parse
