package oracle

import (
	"fmt"
	"strings"

	"github.com/commons-lab/hansard-classify/internal/model"
)

const promptTemplate = `You are analyzing UK parliamentary House of Commons debates to determine if they relate to Brexit.

**Debate Information:**
- Topic: %s
- Date: %s
- Keywords found: %s

**Speech excerpts (first speeches):**
%s

**Task:**
Analyze whether this debate has a significant relation to Brexit (the UK's withdrawal from the European Union).

Consider:
- Direct mentions of Brexit, EU exit, Article 50, withdrawal
- Discussions about EU membership, sovereignty, immigration from EU context
- Trade agreements in context of leaving EU
- Northern Ireland border issues related to Brexit

**Response format (JSON):**
{
  "has_relation": true/false,
  "confidence": 0.0-1.0 (0 = no relation, 1 = very likely relation),
  "reasoning": "One sentence explanation"
}

Respond ONLY with the JSON object, no additional text.`

// buildPrompt assembles the bounded classification prompt: debate title and
// date, at most ten matched terms, and the sample text capped at
// excerptChars characters.
func buildPrompt(debate model.Debate, sampleText string, matchedTerms []string, excerptChars int) string {
	terms := "None"
	if len(matchedTerms) > 0 {
		capped := matchedTerms
		if len(capped) > model.MaxStoredTerms {
			capped = capped[:model.MaxStoredTerms]
		}
		terms = strings.Join(capped, ", ")
	}

	excerpt := sampleText
	if len(excerpt) > excerptChars {
		excerpt = excerpt[:excerptChars]
	}

	return fmt.Sprintf(promptTemplate,
		debate.Title,
		debate.Date.Format("2006-01-02"),
		terms,
		excerpt,
	)
}
