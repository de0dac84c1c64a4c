package bedrock

import (
	"encoding/json"
	"strings"
)

// modelFamily identifies which Bedrock model family a model id belongs to,
// determining which JSON fields token usage is extracted from.
type modelFamily int

const (
	familyUnknown modelFamily = iota
	familyClaude
	familyTitan
	familyLlama
	familyJurassic
	familyCommand
	familyStable
)

// modelFamilyFromID classifies a model id by substring match, the same
// heuristic the reference implementation uses (model ids are vendor
// namespaced, e.g. "anthropic.claude-3-sonnet-20240229").
func modelFamilyFromID(modelID string) modelFamily {
	switch {
	case strings.Contains(modelID, "claude"):
		return familyClaude
	case strings.Contains(modelID, "titan"):
		return familyTitan
	case strings.Contains(modelID, "llama"):
		return familyLlama
	case strings.Contains(modelID, "j2"), strings.Contains(modelID, "jurassic"):
		return familyJurassic
	case strings.Contains(modelID, "command"):
		return familyCommand
	case strings.Contains(modelID, "stable"):
		return familyStable
	default:
		return familyUnknown
	}
}

// tokenUsage is the (input, output) token pair a model-family extractor
// produces.
type tokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// extractTokenUsage dispatches to the family-specific JSON field layout.
// Unknown families, or a body that doesn't parse as the expected shape,
// yield ok=false — this is audit-side best-effort extraction, never a
// hard requirement.
func extractTokenUsage(family modelFamily, body []byte) (tokenUsage, bool) {
	switch family {
	case familyClaude:
		return extractClaudeUsage(body)
	case familyTitan:
		return extractTitanUsage(body)
	case familyLlama:
		return extractLlamaUsage(body)
	case familyJurassic:
		return extractJurassicUsage(body)
	case familyCommand:
		return extractCommandUsage(body)
	default:
		return tokenUsage{}, false
	}
}

// extractClaudeUsage reads usage.input_tokens / usage.output_tokens.
func extractClaudeUsage(body []byte) (tokenUsage, bool) {
	var parsed struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tokenUsage{}, false
	}
	if parsed.Usage.InputTokens == 0 && parsed.Usage.OutputTokens == 0 {
		return tokenUsage{}, false
	}
	return tokenUsage{InputTokens: parsed.Usage.InputTokens, OutputTokens: parsed.Usage.OutputTokens}, true
}

// extractTitanUsage reads inputTextTokenCount plus the sum of
// results[].tokenCount.
func extractTitanUsage(body []byte) (tokenUsage, bool) {
	var parsed struct {
		InputTextTokenCount int `json:"inputTextTokenCount"`
		Results             []struct {
			TokenCount int `json:"tokenCount"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tokenUsage{}, false
	}
	var output int
	for _, r := range parsed.Results {
		output += r.TokenCount
	}
	if parsed.InputTextTokenCount == 0 && output == 0 {
		return tokenUsage{}, false
	}
	return tokenUsage{InputTokens: parsed.InputTextTokenCount, OutputTokens: output}, true
}

// extractLlamaUsage reads prompt_token_count / generation_token_count.
func extractLlamaUsage(body []byte) (tokenUsage, bool) {
	var parsed struct {
		PromptTokenCount     int `json:"prompt_token_count"`
		GenerationTokenCount int `json:"generation_token_count"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tokenUsage{}, false
	}
	if parsed.PromptTokenCount == 0 && parsed.GenerationTokenCount == 0 {
		return tokenUsage{}, false
	}
	return tokenUsage{InputTokens: parsed.PromptTokenCount, OutputTokens: parsed.GenerationTokenCount}, true
}

// extractJurassicUsage reads completions[0].data.tokens length (as input
// proxy) and completions[0].data.generated_tokens.
func extractJurassicUsage(body []byte) (tokenUsage, bool) {
	var parsed struct {
		Completions []struct {
			Data struct {
				Tokens          []json.RawMessage `json:"tokens"`
				GeneratedTokens int                `json:"generated_tokens"`
			} `json:"data"`
		} `json:"completions"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Completions) == 0 {
		return tokenUsage{}, false
	}
	data := parsed.Completions[0].Data
	return tokenUsage{InputTokens: len(data.Tokens), OutputTokens: data.GeneratedTokens}, true
}

// extractCommandUsage reads prompt_tokens / completion_tokens.
func extractCommandUsage(body []byte) (tokenUsage, bool) {
	var parsed struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tokenUsage{}, false
	}
	if parsed.PromptTokens == 0 && parsed.CompletionTokens == 0 {
		return tokenUsage{}, false
	}
	return tokenUsage{InputTokens: parsed.PromptTokens, OutputTokens: parsed.CompletionTokens}, true
}

// pricePerThousandTokens is a coarse, illustrative per-family pricing
// table (USD per 1K input/output tokens) used to produce a cost estimate
// on the ResponseReceived audit record. Operators running this against
// real billing data would override these from configuration; the
// reference implementation describes cost estimation as a feature of the
// adapter without pinning exact rates, so these are representative
// defaults, not a billing source of truth.
var pricePerThousandTokens = map[modelFamily][2]float64{
	familyClaude:   {0.003, 0.015},
	familyTitan:    {0.0008, 0.0016},
	familyLlama:    {0.00065, 0.00065},
	familyJurassic: {0.0125, 0.0125},
	familyCommand:  {0.0015, 0.002},
}

// estimateCost multiplies usage by the family's per-thousand-token rates.
func estimateCost(family modelFamily, usage tokenUsage) float64 {
	rates, ok := pricePerThousandTokens[family]
	if !ok {
		return 0
	}
	inputCost := float64(usage.InputTokens) / 1000 * rates[0]
	outputCost := float64(usage.OutputTokens) / 1000 * rates[1]
	return inputCost + outputCost
}
