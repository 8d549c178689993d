// Package lexicon implements the local keyword stage of debate
// classification: whole-word matching against two weighted term lists.
package lexicon

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/commons-lab/hansard-classify/internal/model"
)

// Scoring weights. Primary matches saturate at 1.0, secondary matches at
// 0.3, and the combined score is capped at 1.0.
const (
	primaryTermWeight   = 0.3
	primaryScoreCap     = 1.0
	secondaryTermWeight = 0.05
	secondaryScoreCap   = 0.3
)

// Lexicon holds the two disjoint term lists used for local scoring.
// Primary terms carry the higher weight.
type Lexicon struct {
	Primary   []string `yaml:"primary"`
	Secondary []string `yaml:"secondary"`
}

// Scorer matches a compiled lexicon against debate text. Safe for
// concurrent use; Score is pure.
type Scorer struct {
	primary   []compiledTerm
	secondary []compiledTerm
}

type compiledTerm struct {
	term string
	re   *regexp.Regexp
}

// NewScorer compiles the lexicon's terms into whole-word, case-insensitive
// matchers. The two lists must be disjoint and the primary list non-empty.
func NewScorer(lex Lexicon) (*Scorer, error) {
	if len(lex.Primary) == 0 {
		return nil, eris.New("lexicon: primary term list is empty")
	}

	seen := make(map[string]bool, len(lex.Primary))
	for _, t := range lex.Primary {
		seen[strings.ToLower(t)] = true
	}
	for _, t := range lex.Secondary {
		if seen[strings.ToLower(t)] {
			return nil, eris.New(fmt.Sprintf("lexicon: term %q appears in both lists", t))
		}
	}

	s := &Scorer{}
	var err error
	if s.primary, err = compileTerms(lex.Primary); err != nil {
		return nil, err
	}
	if s.secondary, err = compileTerms(lex.Secondary); err != nil {
		return nil, err
	}
	return s, nil
}

func compileTerms(terms []string) ([]compiledTerm, error) {
	out := make([]compiledTerm, 0, len(terms))
	for _, t := range terms {
		term := strings.ToLower(strings.TrimSpace(t))
		if term == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			return nil, eris.Wrapf(err, "lexicon: compile term %q", t)
		}
		out = append(out, compiledTerm{term: term, re: re})
	}
	return out, nil
}

// Score runs whole-word matching over text and returns the lexical
// confidence plus the matched terms, primary matches first, each list in
// declaration order. Empty text scores 0.0 with no matches.
func (s *Scorer) Score(text string) model.LexicalResult {
	if text == "" {
		return model.LexicalResult{Confidence: 0, MatchedTerms: []string{}}
	}

	lower := strings.ToLower(text)

	var matched []string
	primaryHits := 0
	for _, ct := range s.primary {
		if ct.re.MatchString(lower) {
			matched = append(matched, ct.term)
			primaryHits++
		}
	}
	secondaryHits := 0
	for _, ct := range s.secondary {
		if ct.re.MatchString(lower) {
			matched = append(matched, ct.term)
			secondaryHits++
		}
	}

	primaryScore := min(float64(primaryHits)*primaryTermWeight, primaryScoreCap)
	secondaryScore := min(float64(secondaryHits)*secondaryTermWeight, secondaryScoreCap)
	confidence := min(primaryScore+secondaryScore, 1.0)

	if matched == nil {
		matched = []string{}
	}
	return model.LexicalResult{Confidence: confidence, MatchedTerms: matched}
}

// LoadFile reads a lexicon from a YAML file with `primary` and `secondary`
// term lists.
func LoadFile(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, eris.Wrapf(err, "lexicon: read %s", path)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, eris.Wrapf(err, "lexicon: parse %s", path)
	}
	return lex, nil
}

// Default returns the built-in Brexit lexicon.
func Default() Lexicon {
	return Lexicon{
		Primary: []string{
			"brexit", "leave campaign", "remain campaign", "article 50",
			"referendum", "eu referendum", "european referendum",
			"leave the eu", "leaving the eu", "exit from europe",
			"withdrawal agreement", "divorce bill", "transition period",
			"hard brexit", "soft brexit", "british exit", "eu exit",
			"no-deal brexit", "brexit-related",
		},
		Secondary: []string{
			"european union", "european community", "eu membership",
			"brussels", "strasbourg", "european commission",
			"european parliament", "eurozone", "single market",
			"customs union", "free movement", "schengen",
			"eu law", "eu regulation", "eu directive",
			"eu budget", "eu contribution", "sovereignty",
			"independence", "british sovereignty", "take back control",
			"immigration control", "border control",
			"trade agreement", "trade deal", "wto",
			"northern ireland protocol", "backstop", "irish border",
			"member state", "future relationship",
			"european treaty", "maastricht treaty", "partnership agreement",
			"economic partnership", "freedom of movement", "european integration",
		},
	}
}
