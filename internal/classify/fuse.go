package classify

// Fusion weights and the decision threshold. A combined confidence of
// exactly 0.5 is a negative decision.
const (
	lexicalWeight     = 0.3
	oracleWeight      = 0.7
	decisionThreshold = 0.5
)

// Fuse combines the lexical and oracle confidences into the final verdict.
// With zero matched terms the oracle is never consulted and the result is
// unconditionally negative. The oracle's own boolean is accepted for
// logging parity but the decision is driven purely by the weighted
// confidence.
func Fuse(lexicalConfidence float64, matchedTerms int, oracleHasRelation bool, oracleConfidence float64) (related bool, combined float64) {
	_ = oracleHasRelation

	if matchedTerms == 0 {
		return false, 0.0
	}

	combined = lexicalWeight*lexicalConfidence + oracleWeight*oracleConfidence
	return combined > decisionThreshold, combined
}
