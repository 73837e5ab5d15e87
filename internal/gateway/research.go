package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/cost"
	"github.com/sells-group/prospectkeeper/pkg/anthropic"
	"github.com/sells-group/prospectkeeper/pkg/jina"
)

const researchSystemPrompt = `You verify whether a B2B contact still holds a stated role, using only the
evidence provided. If the contact has departed, identify who replaced them in
the role when the evidence names a successor.

Respond with a single JSON object and nothing else:
{
  "still_active": "confirmed" | "denied" | "inconclusive",
  "current_title": "",
  "current_organization": "",
  "replacement_name": "",
  "replacement_title": "",
  "replacement_email": "",
  "evidence_urls": []
}

Rules:
- "confirmed" and "denied" require explicit supporting evidence; when the
  evidence is stale, contradictory, or absent, answer "inconclusive".
- Only report a replacement you can name from the evidence. Never invent an
  email address.
- evidence_urls lists the provided source URLs that support your answer.`

// ClaudeResearcher implements Researcher: a web search gathers fresh
// evidence, then Claude reasons over it and returns a structured verdict.
type ClaudeResearcher struct {
	llm       anthropic.Client
	search    jina.Client
	calc      *cost.Calculator
	model     string
	maxTokens int64
}

// NewClaudeResearcher wires the paid research tier.
func NewClaudeResearcher(llm anthropic.Client, search jina.Client, calc *cost.Calculator, model string, maxTokens int64) *ClaudeResearcher {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &ClaudeResearcher{llm: llm, search: search, calc: calc, model: model, maxTokens: maxTokens}
}

// researchVerdict is the JSON shape the model is instructed to return.
type researchVerdict struct {
	StillActive         string   `json:"still_active"`
	CurrentTitle        string   `json:"current_title"`
	CurrentOrganization string   `json:"current_organization"`
	ReplacementName     string   `json:"replacement_name"`
	ReplacementTitle    string   `json:"replacement_title"`
	ReplacementEmail    string   `json:"replacement_email"`
	EvidenceURLs        []string `json:"evidence_urls"`
}

func (r *ClaudeResearcher) Research(ctx context.Context, req ResearchRequest) (ResearchResult, error) {
	log := zap.L().With(zap.String("name", req.Name), zap.String("organization", req.Organization))

	evidence := r.gatherEvidence(ctx, req)

	msg, err := r.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(researchSystemPrompt),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: buildResearchPrompt(req, evidence),
		}},
	})
	if err != nil {
		return ResearchResult{}, eris.Wrap(err, "gateway: research call")
	}
	msg.Usage.LogUsage(r.model, "research")

	result := ResearchResult{
		TokensInput:  int(msg.Usage.InputTokens + msg.Usage.CacheCreationInputTokens + msg.Usage.CacheReadInputTokens),
		TokensOutput: int(msg.Usage.OutputTokens),
	}
	result.CostUSD = r.calc.Claude(r.model, result.TokensInput, result.TokensOutput)

	var verdict researchVerdict
	if err := json.Unmarshal([]byte(stripFences(msg.Text())), &verdict); err != nil {
		// Tokens were spent either way; report the cost with the failure.
		log.Warn("gateway: research response unparseable", zap.Error(err))
		return result, nil
	}

	result.Success = true
	result.StillActive = parseDetermination(verdict.StillActive)
	result.CurrentTitle = verdict.CurrentTitle
	result.CurrentOrganization = verdict.CurrentOrganization
	result.ReplacementName = verdict.ReplacementName
	result.ReplacementTitle = verdict.ReplacementTitle
	result.ReplacementEmail = verdict.ReplacementEmail
	result.EvidenceURLs = verdict.EvidenceURLs
	return result, nil
}

// gatherEvidence runs a general web search for the contact. Failures degrade
// to whatever context the cheaper tiers already collected.
func (r *ClaudeResearcher) gatherEvidence(ctx context.Context, req ResearchRequest) []jina.SearchResult {
	search, err := r.search.Search(ctx, fmt.Sprintf("%q %s %s", req.Name, req.Title, req.Organization))
	if err != nil {
		zap.L().Warn("gateway: research search failed", zap.Error(err))
		return nil
	}
	hits := search.Data
	if len(hits) > 5 {
		hits = hits[:5]
	}
	return hits
}

func buildResearchPrompt(req ResearchRequest, hits []jina.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contact: %s\nStated role: %s at %s\n", req.Name, req.Title, req.Organization)

	if req.ContextText != "" {
		fmt.Fprintf(&b, "\n## Context from the organization's website\n%s\n", req.ContextText)
	}

	if len(hits) > 0 {
		b.WriteString("\n## Web search results\n")
		for _, h := range hits {
			fmt.Fprintf(&b, "\n### %s\nURL: %s\n%s\n", h.Title, h.URL, truncate(h.Content, 1500))
		}
	} else {
		b.WriteString("\n(no web search results available)\n")
	}

	b.WriteString("\nIs this contact still in the stated role?")
	return b.String()
}

// parseDetermination maps the model's answer onto the tri-state signal.
// Anything unrecognized is inconclusive.
func parseDetermination(s string) Determination {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confirmed":
		return Confirmed
	case "denied":
		return Denied
	default:
		return Inconclusive
	}
}

// stripFences removes a markdown code fence wrapper if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
