package evaluator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// QuestionType tags the answer shape of a question. Every correct-answer key
// and student answer is interpreted through this tag.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	TrueFalse      QuestionType = "true_false"
	MultipleChoice QuestionType = "multiple_choice"
	GapFill        QuestionType = "gap_fill"
	Matching       QuestionType = "matching"
	Ordering       QuestionType = "ordering"
	Numeric        QuestionType = "numeric"
	ShortAnswer    QuestionType = "short_answer"
)

var questionTypes = map[QuestionType]struct{}{
	SingleChoice: {}, TrueFalse: {}, MultipleChoice: {}, GapFill: {},
	Matching: {}, Ordering: {}, Numeric: {}, ShortAnswer: {},
}

// Valid reports whether t is a recognized question type. Unrecognized types
// are never auto-gradable.
func (t QuestionType) Valid() bool {
	_, ok := questionTypes[t]
	return ok
}

// Key is the parsed correct-answer specification of a single question. Keys
// are built once via ParseKey when the question is authored, so malformed
// shapes are rejected before any student ever attempts them.
type Key interface {
	questionType() QuestionType
}

// SingleChoiceKey matches exactly one option id. Used for single_choice and
// true_false (options "true"/"false").
type SingleChoiceKey struct {
	OptionID string `json:"option_id"`
}

// MultipleChoiceKey holds the full set of correct option ids.
type MultipleChoiceKey struct {
	OptionIDs []string `json:"option_ids"`
}

// GapFillKey lists, per gap, the accepted strings. Comparison is
// case-insensitive and trimmed.
type GapFillKey struct {
	Gaps [][]string `json:"gaps"`
}

// MatchingKey maps each left-hand item id to its expected right-hand item id.
type MatchingKey struct {
	Pairs map[string]string `json:"pairs"`
}

// OrderingKey holds the expected item sequence.
type OrderingKey struct {
	Sequence []string `json:"sequence"`
}

// NumericKey accepts any value within Tolerance of Value.
type NumericKey struct {
	Value     float64 `json:"value"`
	Tolerance float64 `json:"tolerance"`
}

// Short-answer matching modes.
const (
	MatchAll = "all" // every keyword must be present
	MatchAny = "any" // at least one keyword must be present
)

// ShortAnswerKey grades free text either by keyword presence (Match decides
// whether all keywords or any one keyword is required) or by a regular
// expression, when Pattern is set. Keyword comparison is case-insensitive.
type ShortAnswerKey struct {
	Keywords []string `json:"keywords,omitempty"`
	Match    string   `json:"match,omitempty"` // "all" (default) or "any"
	Pattern  string   `json:"pattern,omitempty"`

	re *regexp.Regexp // compiled at parse time
}

func (SingleChoiceKey) questionType() QuestionType   { return SingleChoice }
func (MultipleChoiceKey) questionType() QuestionType { return MultipleChoice }
func (GapFillKey) questionType() QuestionType        { return GapFill }
func (MatchingKey) questionType() QuestionType       { return Matching }
func (OrderingKey) questionType() QuestionType       { return Ordering }
func (NumericKey) questionType() QuestionType        { return Numeric }
func (ShortAnswerKey) questionType() QuestionType    { return ShortAnswer }

// ParseKey validates and parses a raw correct-answer specification for the
// given question type. It is strict: empty or structurally wrong keys are
// errors, so bad data is caught at authoring time rather than at evaluation.
func ParseKey(t QuestionType, raw []byte) (Key, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty answer key for type %q", t)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()

	switch t {
	case SingleChoice, TrueFalse:
		var k SingleChoiceKey
		if err := dec.Decode(&k); err != nil {
			return nil, fmt.Errorf("parsing %s key: %w", t, err)
		}
		if k.OptionID == "" {
			return nil, fmt.Errorf("%s key requires option_id", t)
		}
		return k, nil

	case MultipleChoice:
		var k MultipleChoiceKey
		if err := dec.Decode(&k); err != nil {
			return nil, fmt.Errorf("parsing multiple_choice key: %w", err)
		}
		if len(k.OptionIDs) == 0 {
			return nil, fmt.Errorf("multiple_choice key requires at least one option id")
		}
		return k, nil

	case GapFill:
		var k GapFillKey
		if err := dec.Decode(&k); err != nil {
			return nil, fmt.Errorf("parsing gap_fill key: %w", err)
		}
		if len(k.Gaps) == 0 {
			return nil, fmt.Errorf("gap_fill key requires at least one gap")
		}
		for i, accepted := range k.Gaps {
			if len(accepted) == 0 {
				return nil, fmt.Errorf("gap %d has no accepted answers", i)
			}
		}
		return k, nil

	case Matching:
		var k MatchingKey
		if err := dec.Decode(&k); err != nil {
			return nil, fmt.Errorf("parsing matching key: %w", err)
		}
		if len(k.Pairs) == 0 {
			return nil, fmt.Errorf("matching key requires at least one pair")
		}
		return k, nil

	case Ordering:
		var k OrderingKey
		if err := dec.Decode(&k); err != nil {
			return nil, fmt.Errorf("parsing ordering key: %w", err)
		}
		if len(k.Sequence) < 2 {
			return nil, fmt.Errorf("ordering key requires at least two items")
		}
		return k, nil

	case Numeric:
		var k NumericKey
		if err := dec.Decode(&k); err != nil {
			return nil, fmt.Errorf("parsing numeric key: %w", err)
		}
		if k.Tolerance < 0 {
			return nil, fmt.Errorf("numeric tolerance must not be negative")
		}
		return k, nil

	case ShortAnswer:
		var k ShortAnswerKey
		if err := dec.Decode(&k); err != nil {
			return nil, fmt.Errorf("parsing short_answer key: %w", err)
		}
		if k.Pattern == "" && len(k.Keywords) == 0 {
			return nil, fmt.Errorf("short_answer key requires keywords or a pattern")
		}
		if k.Pattern != "" {
			re, err := regexp.Compile(k.Pattern)
			if err != nil {
				return nil, fmt.Errorf("compiling short_answer pattern: %w", err)
			}
			k.re = re
		}
		switch k.Match {
		case "", MatchAll, MatchAny:
		default:
			return nil, fmt.Errorf("unknown short_answer match mode %q", k.Match)
		}
		return k, nil
	}
	return nil, fmt.Errorf("unknown question type %q", t)
}
