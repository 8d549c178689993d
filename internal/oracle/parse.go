package oracle

import (
	"encoding/json"
	"strings"

	"github.com/commons-lab/hansard-classify/internal/model"
)

// parseResponse extracts the first JSON object substring from the raw model
// output and decodes the classification fields, defaulting each missing
// field. A response with no JSON object yields the parse-failure result.
//
// The substring heuristic (first '{' through last '}') is deliberately
// isolated here so it can be replaced by a stricter structured-output
// contract without touching the client or orchestrator.
func parseResponse(raw string) model.OracleResult {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return model.OracleResult{Reasoning: reasonParseFailure}
	}

	var parsed struct {
		HasRelation bool    `json:"has_relation"`
		Confidence  float64 `json:"confidence"`
		Reasoning   string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return model.OracleResult{Reasoning: reasonParseFailure}
	}

	return model.OracleResult{
		HasRelation: parsed.HasRelation,
		Confidence:  parsed.Confidence,
		Reasoning:   parsed.Reasoning,
	}
}

// extractJSONObject returns the substring spanning the first '{' to the
// last '}' of raw, which tolerates code fences and prose around the object.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}
