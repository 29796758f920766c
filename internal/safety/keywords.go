package safety

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Concern categories. Order in the keyword table is the match priority:
// the first category whose phrase matches wins.
const (
	CategorySelfHarm     = "self_harm"
	CategoryBullying     = "bullying"
	CategoryAbuse        = "abuse"
	CategoryDepression   = "depression"
	CategoryFamilyIssues = "family_issues"
)

// CategoryKeywords binds one concern category to its ordered phrase list.
type CategoryKeywords struct {
	Category string   `yaml:"category"`
	Phrases  []string `yaml:"phrases"`
}

// KeywordTable is the full ordered category table.
type KeywordTable []CategoryKeywords

// DefaultKeywordTable is the compiled-in phrase table. English only; the
// scanner does exact word-boundary matching with no stemming.
var DefaultKeywordTable = KeywordTable{
	{Category: CategorySelfHarm, Phrases: []string{
		"kill myself",
		"want to die",
		"end my life",
		"end it all",
		"suicide",
		"hurt myself",
		"cut myself",
		"self harm",
		"no reason to live",
		"better off dead",
		"better off without me",
	}},
	{Category: CategoryBullying, Phrases: []string{
		"being bullied",
		"bullying me",
		"everyone hates me",
		"they all laugh at me",
		"pick on me",
		"picking on me",
		"making fun of me at school",
		"push me around",
	}},
	{Category: CategoryAbuse, Phrases: []string{
		"hits me",
		"hit me again",
		"hurts me at home",
		"touches me",
		"afraid to go home",
		"scared to go home",
		"scared of my dad",
		"scared of my mom",
		"locks me in",
	}},
	{Category: CategoryDepression, Phrases: []string{
		"so depressed",
		"feel so empty",
		"feel hopeless",
		"nothing matters",
		"hate my life",
		"can't get out of bed",
		"cry myself to sleep",
		"feel worthless",
	}},
	{Category: CategoryFamilyIssues, Phrases: []string{
		"parents are divorcing",
		"parents are splitting up",
		"fighting at home",
		"my parents hate me",
		"ran away from home",
		"want to run away",
	}},
}

// compositeRule fires when a trigger phrase co-occurs with any companion
// phrase. Composite hits are always tagged self_harm.
type compositeRule struct {
	trigger    string
	companions []string
}

var compositeRules = []compositeRule{
	{trigger: "hate myself", companions: []string{
		"can't go on", "cant go on", "no point", "give up", "disappear",
	}},
	{trigger: "nobody would care", companions: []string{
		"gone", "wasn't here", "wasnt here", "disappeared",
	}},
}

// ScanResult is the scanner's verdict for one message.
type ScanResult struct {
	HasConcern bool
	Category   string
}

type compiledCategory struct {
	category string
	patterns []*regexp.Regexp
}

type compiledComposite struct {
	trigger    *regexp.Regexp
	companions []*regexp.Regexp
}

// Scanner is a pure lexical pre-filter over inbound message text. It is
// cheap by design; anything it flags still goes through verification.
type Scanner struct {
	categories []compiledCategory
	composites []compiledComposite
}

// NewScanner compiles the keyword table once. Phrase patterns are
// word-boundary anchored so "suicide" does not match "suicidedata".
func NewScanner(table KeywordTable) (*Scanner, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("keyword table is empty")
	}

	s := &Scanner{}
	for _, ck := range table {
		if ck.Category == "" || len(ck.Phrases) == 0 {
			return nil, fmt.Errorf("keyword table entry for %q has no phrases", ck.Category)
		}
		cc := compiledCategory{category: ck.Category}
		for _, phrase := range ck.Phrases {
			cc.patterns = append(cc.patterns, phrasePattern(phrase))
		}
		s.categories = append(s.categories, cc)
	}

	for _, rule := range compositeRules {
		comp := compiledComposite{trigger: phrasePattern(rule.trigger)}
		for _, c := range rule.companions {
			comp.companions = append(comp.companions, phrasePattern(c))
		}
		s.composites = append(s.composites, comp)
	}

	return s, nil
}

func phrasePattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(phrase)) + `\b`)
}

// Scan checks message text against the keyword table. The first matching
// phrase in table order wins; composite rules run only when no single
// phrase matched.
func (s *Scanner) Scan(text string) ScanResult {
	if text == "" {
		return ScanResult{}
	}
	lowered := strings.ToLower(text)

	for _, cc := range s.categories {
		for _, p := range cc.patterns {
			if p.MatchString(lowered) {
				return ScanResult{HasConcern: true, Category: cc.category}
			}
		}
	}

	for _, comp := range s.composites {
		if !comp.trigger.MatchString(lowered) {
			continue
		}
		for _, c := range comp.companions {
			if c.MatchString(lowered) {
				return ScanResult{HasConcern: true, Category: CategorySelfHarm}
			}
		}
	}

	return ScanResult{}
}

// LoadKeywordTable reads a keyword table override from a YAML file, or
// returns the compiled-in default when path is empty.
func LoadKeywordTable(path string) (KeywordTable, error) {
	if path == "" {
		return DefaultKeywordTable, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword table: %w", err)
	}

	var table KeywordTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to decode keyword table: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("keyword table %s is empty", path)
	}
	return table, nil
}
