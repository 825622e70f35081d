package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/aristath/overseer/internal/domain"
)

// OpenAIConfig holds the LLM engine configuration
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAI is the LLM-backed decision engine. One chat completion per cycle,
// temperature 0, JSON output parsed from between the first and last brace so
// markdown fences around the payload do not break it.
type OpenAI struct {
	cfg OpenAIConfig
	sdk *openai.Client
	log zerolog.Logger
}

// NewOpenAI creates the LLM decision engine
func NewOpenAI(cfg OpenAIConfig, log zerolog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &OpenAI{
		cfg: cfg,
		sdk: openai.NewClientWithConfig(clientConfig),
		log: log.With().Str("component", "engine_openai").Logger(),
	}, nil
}

// Name implements Engine
func (e *OpenAI) Name() string {
	return "openai"
}

// proposalPayload is the JSON shape the model is instructed to return
type proposalPayload struct {
	Trades []struct {
		Symbol    string  `json:"symbol"`
		Action    string  `json:"action"`
		Quantity  float64 `json:"quantity"`
		Rationale string  `json:"rationale"`
	} `json:"trades"`
	Explanation string `json:"explanation"`
}

// Propose implements Engine
func (e *OpenAI) Propose(ctx context.Context, dctx *Context) (*Proposal, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	response, err := e.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(dctx),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call openai: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("openai returned empty content")
	}

	proposal, err := parseProposal(content)
	if err != nil {
		e.log.Error().Err(err).Str("raw_content", content).Msg("Failed to parse model proposal")
		return nil, err
	}

	proposal.Intents = CapIntents(proposal.Intents, dctx.MaxSteps)

	e.log.Info().
		Str("agent_id", dctx.AgentID).
		Int("intents", len(proposal.Intents)).
		Msg("Model proposal generated")

	return proposal, nil
}

const systemPrompt = `You are a portfolio decision engine for a simulated trading account.
Respond with a single JSON object and nothing else:
{"trades": [{"symbol": "...", "action": "BUY"|"SELL", "quantity": <number>, "rationale": "..."}], "explanation": "..."}
Rules: never sell more than the held quantity; never spend more cash than available; in OBSERVATION mode return an empty trades list; keep the list short and ordered by priority.`

// buildPrompt renders the decision context for the model
func buildPrompt(dctx *Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Mode: %s\n", dctx.Mode)
	fmt.Fprintf(&b, "Market open: %t\n", dctx.MarketOpen)
	fmt.Fprintf(&b, "Cash: %.2f\n", dctx.Cash)
	fmt.Fprintf(&b, "Max trades this cycle: %d\n", dctx.MaxSteps)

	b.WriteString("Holdings:\n")
	if len(dctx.Positions) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, position := range dctx.Positions {
		fmt.Fprintf(&b, "  %s qty=%.4f avg_cost=%.2f\n", position.Symbol, position.Quantity, position.AverageCost)
	}

	b.WriteString("Prices:\n")
	for _, symbol := range dctx.Symbols {
		if price, ok := dctx.Prices[symbol]; ok {
			fmt.Fprintf(&b, "  %s %.2f\n", symbol, price)
		}
	}

	b.WriteString("Analysis:\n")
	for _, report := range dctx.Reports {
		fmt.Fprintf(&b, "  [%s] %s\n", report.Provider, report.Summary)
		for symbol, score := range report.Scores {
			fmt.Fprintf(&b, "    %s %.2f\n", symbol, score)
		}
	}

	return b.String()
}

// parseProposal extracts and validates the JSON proposal from raw model
// output. Intents that fail validation are dropped, not fatal: one malformed
// entry should not void an otherwise usable proposal.
func parseProposal(content string) (*Proposal, error) {
	payload, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var parsed proposalPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode proposal JSON: %w", err)
	}

	proposal := &Proposal{Explanation: strings.TrimSpace(parsed.Explanation)}
	for _, trade := range parsed.Trades {
		action, err := domain.ParseTradeAction(trade.Action)
		if err != nil {
			continue
		}
		intent := TradeIntent{
			Symbol:    strings.ToUpper(strings.TrimSpace(trade.Symbol)),
			Action:    action,
			Quantity:  trade.Quantity,
			Rationale: strings.TrimSpace(trade.Rationale),
		}
		if err := ValidateIntent(intent); err != nil {
			continue
		}
		proposal.Intents = append(proposal.Intents, intent)
	}

	return proposal, nil
}

// extractJSON returns the slice of content between the first '{' and the
// last '}'
func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in model output: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
