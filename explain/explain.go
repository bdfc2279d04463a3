package explain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pgsleuth/pgsleuth/state"
	"github.com/pgsleuth/pgsleuth/util"
)

const systemPrompt = "You are a PostgreSQL expert. Explain the following deadlock analysis " +
	"to an application developer in plain language: what happened, why, and what to change first. " +
	"Be concrete and keep it under 200 words."

// Provider - One OpenAI-compatible chat completion endpoint
type Provider struct {
	Name   string
	Model  string
	client *openai.Client
}

func NewProvider(name string, apiKey string, baseURL string, model string) Provider {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return Provider{
		Name:   name,
		Model:  model,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Explainer - Turns a DeadlockInfo into a plain-language explanation.
// Providers are tried strictly in order; the first success wins.
type Explainer struct {
	logger    *util.Logger
	providers []Provider
}

func NewExplainer(logger *util.Logger, providers ...Provider) *Explainer {
	return &Explainer{logger: logger, providers: providers}
}

func (explainer *Explainer) Enabled() bool {
	return len(explainer.providers) > 0
}

func (explainer *Explainer) Explain(ctx context.Context, info *state.DeadlockInfo) (string, error) {
	prompt := buildPrompt(info)

	var lastErr error
	for _, provider := range explainer.providers {
		resp, err := provider.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: provider.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			explainer.logger.PrintWarning("Explanation provider %s failed: %s", provider.Name, err)
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.Errorf("provider %s returned no choices", provider.Name)
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", errors.Wrap(lastErr, "all explanation providers failed")
}

// buildPrompt - Compact textual summary of the analysis; statements are
// already redacted upstream so they can be quoted as-is
func buildPrompt(info *state.DeadlockInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Severity score: %d\n", info.SeverityScore)
	fmt.Fprintf(&b, "Cycles: %d\n", len(info.Cycles))
	for _, cycle := range info.Cycles {
		fmt.Fprintf(&b, "- processes %v on tables %s (severity %d)\n",
			cycle.Pids, strings.Join(cycle.Relations, ", "), cycle.Severity)
	}
	for _, pid := range sortedTransactionPids(info) {
		tx := info.Transactions[pid]
		if tx.Statement.Valid {
			fmt.Fprintf(&b, "Process %d statement: %s\n", pid, tx.Statement.String)
		}
	}
	b.WriteString("Rule-based recommendation:\n")
	b.WriteString(info.RecommendedFix)
	return b.String()
}

func sortedTransactionPids(info *state.DeadlockInfo) []int32 {
	pids := make([]int32, 0, len(info.Transactions))
	for pid := range info.Transactions {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}
