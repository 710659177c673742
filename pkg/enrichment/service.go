// Package enrichment analyses leads with an OpenAI chat model and merges
// the result into the lead through the allow-listed patch.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// ActionAnalyzed is the history action written after an analysis
const ActionAnalyzed = "KI-Analyse"

// maxWebsiteText bounds the scraped website text sent with the prompt
const maxWebsiteText = 4000

// Config for the OpenAI client
type Config struct {
	APIKey      string
	Model       string  // default: gpt-4o-mini
	BaseURL     string  // default: the OpenAI API
	Temperature float32 // default: 0.3
	MaxTokens   int     // default: 800
}

// Analysis is the JSON object the model answers with
type Analysis struct {
	Summary        string   `json:"zusammenfassung"`
	TargetGroup    string   `json:"zielgruppe"`
	OnlinePresence string   `json:"onlineAuftritt"`
	Weaknesses     string   `json:"schwaechen"`
	Opportunities  string   `json:"chancen"`
	Competition    string   `json:"wettbewerb"`
	Pitch          string   `json:"ansprache"`
	Score          int      `json:"score"`
	ScoreReason    string   `json:"score_begruendung"`
	Segment        string   `json:"segment"`
	Tags           []string `json:"tags"`
}

// BulkResult reports a bulk enrichment run
type BulkResult struct {
	TotalLeads   int             `json:"totalLeads"`
	SuccessCount int             `json:"successCount"`
	FailureCount int             `json:"failureCount"`
	Errors       map[uint]string `json:"errors"` // lead id -> error message
}

// Service enriches leads
type Service struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	leads       *leads.Service
	logger      logger.Logger
	now         func() time.Time
}

// NewService creates an enrichment service
func NewService(cfg Config, leadStore *leads.Service, log logger.Logger) *Service {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 800
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Service{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		leads:       leadStore,
		logger:      log,
		now:         time.Now,
	}
}

// EnrichLead analyses a lead and stores the result. The AI score becomes
// the lead's authoritative score; a manual segment is left alone.
func (s *Service) EnrichLead(ctx context.Context, id uint) (*models.Lead, error) {
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	analysis, err := s.Analyze(ctx, lead)
	if err != nil {
		return nil, err
	}

	if _, err := s.leads.Patch(ctx, id, analysis.Patch(lead, s.now().UTC())); err != nil {
		return nil, err
	}
	details := fmt.Sprintf("Score: %d, Segment: %s", analysis.Score, analysis.Segment)
	updated, err := s.leads.AddHistory(ctx, id, ActionAnalyzed, details)
	if err != nil {
		return nil, err
	}

	s.logger.Info("lead enriched", "lead_id", id, "score", updated.Score, "segment", updated.Segment)
	return updated, nil
}

// BulkEnrichLeads enriches leads one after another. Failures are collected
// per lead and do not stop the run.
func (s *Service) BulkEnrichLeads(ctx context.Context, ids []uint) *BulkResult {
	result := &BulkResult{
		TotalLeads: len(ids),
		Errors:     make(map[uint]string),
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			result.FailureCount++
			result.Errors[id] = ctx.Err().Error()
			continue
		}
		if _, err := s.EnrichLead(ctx, id); err != nil {
			result.FailureCount++
			result.Errors[id] = err.Error()
			continue
		}
		result.SuccessCount++
	}
	return result
}

// Analyze asks the model for an assessment of lead
func (s *Service) Analyze(ctx context.Context, lead *models.Lead) (*Analysis, error) {
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(lead)},
		},
		Temperature:    s.temperature,
		MaxTokens:      s.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		s.logger.Warn("openai request failed", "lead_id", lead.ID, "duration", time.Since(start), "error", err)
		return nil, domain.NewTransportError(fmt.Errorf("openai chat failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewTransportError(fmt.Errorf("no response from openai"))
	}

	s.logger.Debug("openai analysis completed", "lead_id", lead.ID, "tokens", resp.Usage.TotalTokens, "duration", time.Since(start))
	return ParseAnalysis(resp.Choices[0].Message.Content)
}

// ParseAnalysis decodes a model answer. Markdown code fences around the
// object are tolerated and the score is clamped to 0-100.
func ParseAnalysis(content string) (*Analysis, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("invalid analysis json: %w", err))
	}

	if a.Score < 0 {
		a.Score = 0
	}
	if a.Score > 100 {
		a.Score = 100
	}
	a.Segment = strings.ToUpper(strings.TrimSpace(a.Segment))
	if !models.IsValidSegment(models.Segment(a.Segment)) {
		a.Segment = ""
	}
	return &a, nil
}

// Patch converts the analysis into the lead patch. Tags are merged with
// the lead's existing ones.
func (a *Analysis) Patch(lead *models.Lead, at time.Time) models.LeadPatch {
	analyzed := true
	score := a.Score
	tags := mergeTags(lead.Tags, a.Tags)

	return models.LeadPatch{
		Summary:          &a.Summary,
		AIAnalyzed:       &analyzed,
		AIAnalyzedAt:     &at,
		AITargetGroup:    &a.TargetGroup,
		AIOnlinePresence: &a.OnlinePresence,
		AIWeaknesses:     &a.Weaknesses,
		AIOpportunities:  &a.Opportunities,
		AICompetition:    &a.Competition,
		AIPitch:          &a.Pitch,
		AIScore:          &score,
		AIScoreReason:    &a.ScoreReason,
		AISegment:        &a.Segment,
		Tags:             &tags,
	}
}

func mergeTags(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			key := strings.ToLower(tag)
			if tag == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, tag)
		}
	}
	return out
}

// extractDomain extracts the host of a website URL without www.
func extractDomain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.HasPrefix(website, "http://") && !strings.HasPrefix(website, "https://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
