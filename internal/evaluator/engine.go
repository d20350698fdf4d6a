// Package evaluator scores a single student answer against a question's
// correct-answer key. It is pure: no persistence, no side effects beyond a
// warning log when a datum is malformed. A bad key or answer never aborts an
// evaluation run; it degrades to zero points for that one question.
package evaluator

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Spec is the minimal view of a question the engine needs.
type Spec struct {
	QuestionID uint
	Type       QuestionType
	Key        []byte // raw correct-answer specification
	Points     float64
}

// Result is the outcome of evaluating one answer.
type Result struct {
	IsCorrect      bool
	PointsEarned   float64
	PointsPossible float64
}

type Engine struct {
	partialMultipleChoice bool
}

type EngineOption func(*Engine)

// WithPartialMultipleChoice enables proportional credit for multiple_choice:
// |selected ∩ correct| / |correct| of the points, but only when no wrong
// option was selected. The default is all-or-nothing.
func WithPartialMultipleChoice(enabled bool) EngineOption {
	return func(e *Engine) { e.partialMultipleChoice = enabled }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores one answer. It never fails: an unparseable key, an
// unrecognized type, or a wrong-shaped answer yields zero points and a logged
// warning, so one corrupt question cannot block a whole submission.
func (e *Engine) Evaluate(spec Spec, answer []byte) Result {
	zero := Result{PointsPossible: spec.Points}

	key, err := ParseKey(spec.Type, spec.Key)
	if err != nil {
		log.Warn().Err(err).Uint("questionID", spec.QuestionID).Str("type", string(spec.Type)).
			Msg("Evaluate: malformed answer key, awarding zero points")
		return zero
	}
	if isEmptyJSON(answer) {
		return zero
	}

	switch k := key.(type) {
	case SingleChoiceKey:
		return e.evalSingleChoice(spec, k, answer)
	case MultipleChoiceKey:
		return e.evalMultipleChoice(spec, k, answer)
	case GapFillKey:
		return e.evalGapFill(spec, k, answer)
	case MatchingKey:
		return e.evalMatching(spec, k, answer)
	case OrderingKey:
		return e.evalOrdering(spec, k, answer)
	case NumericKey:
		return e.evalNumeric(spec, k, answer)
	case ShortAnswerKey:
		return e.evalShortAnswer(spec, k, answer)
	}
	return zero
}

func (e *Engine) evalSingleChoice(spec Spec, key SingleChoiceKey, answer []byte) Result {
	res := Result{PointsPossible: spec.Points}
	selected, ok := decodeString(spec, answer)
	if !ok {
		return res
	}
	if selected == key.OptionID {
		res.IsCorrect = true
		res.PointsEarned = spec.Points
	}
	return res
}

func (e *Engine) evalMultipleChoice(spec Spec, key MultipleChoiceKey, answer []byte) Result {
	res := Result{PointsPossible: spec.Points}
	selected, ok := decodeStringSlice(spec, answer)
	if !ok {
		return res
	}
	correct := toSet(key.OptionIDs)
	chosen := toSet(selected)

	if setEqual(correct, chosen) {
		res.IsCorrect = true
		res.PointsEarned = spec.Points
		return res
	}
	if !e.partialMultipleChoice {
		return res
	}
	// Proportional credit, forfeited entirely by any wrong selection.
	hits := 0
	for id := range chosen {
		if _, ok := correct[id]; !ok {
			return res
		}
		hits++
	}
	res.PointsEarned = spec.Points * float64(hits) / float64(len(correct))
	return res
}

func (e *Engine) evalGapFill(spec Spec, key GapFillKey, answer []byte) Result {
	res := Result{PointsPossible: spec.Points}
	given, ok := decodeStringSlice(spec, answer)
	if !ok {
		return res
	}
	correct := 0
	for i, accepted := range key.Gaps {
		if i >= len(given) {
			break
		}
		g := normalize(given[i])
		for _, a := range accepted {
			if normalize(a) == g {
				correct++
				break
			}
		}
	}
	res.PointsEarned = spec.Points * float64(correct) / float64(len(key.Gaps))
	res.IsCorrect = correct == len(key.Gaps)
	return res
}

func (e *Engine) evalMatching(spec Spec, key MatchingKey, answer []byte) Result {
	res := Result{PointsPossible: spec.Points}
	var given map[string]string
	if err := json.Unmarshal(answer, &given); err != nil {
		warnAnswerShape(spec, err)
		return res
	}
	if len(given) != len(key.Pairs) {
		return res
	}
	for left, right := range key.Pairs {
		if given[left] != right {
			return res
		}
	}
	res.IsCorrect = true
	res.PointsEarned = spec.Points
	return res
}

func (e *Engine) evalOrdering(spec Spec, key OrderingKey, answer []byte) Result {
	res := Result{PointsPossible: spec.Points}
	given, ok := decodeStringSlice(spec, answer)
	if !ok {
		return res
	}
	if len(given) != len(key.Sequence) {
		return res
	}
	for i, id := range key.Sequence {
		if given[i] != id {
			return res
		}
	}
	res.IsCorrect = true
	res.PointsEarned = spec.Points
	return res
}

func (e *Engine) evalNumeric(spec Spec, key NumericKey, answer []byte) Result {
	res := Result{PointsPossible: spec.Points}
	value, ok := decodeFloat(spec, answer)
	if !ok {
		return res
	}
	diff := value - key.Value
	if diff < 0 {
		diff = -diff
	}
	if diff <= key.Tolerance {
		res.IsCorrect = true
		res.PointsEarned = spec.Points
	}
	return res
}

func (e *Engine) evalShortAnswer(spec Spec, key ShortAnswerKey, answer []byte) Result {
	res := Result{PointsPossible: spec.Points}
	text, ok := decodeString(spec, answer)
	if !ok {
		return res
	}
	if strings.TrimSpace(text) == "" {
		return res
	}

	if key.re != nil {
		if key.re.MatchString(text) {
			res.IsCorrect = true
			res.PointsEarned = spec.Points
		}
		return res
	}

	low := strings.ToLower(text)
	hits := 0
	for _, kw := range key.Keywords {
		if strings.Contains(low, strings.ToLower(kw)) {
			hits++
		}
	}
	required := len(key.Keywords)
	if key.Match == MatchAny {
		required = 1
	}
	if hits >= required {
		res.IsCorrect = true
		res.PointsEarned = spec.Points
	}
	return res
}

// --- decoding helpers ---

func isEmptyJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeString(spec Spec, raw []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		warnAnswerShape(spec, err)
		return "", false
	}
	return s, true
}

func decodeStringSlice(spec Spec, raw []byte) ([]string, bool) {
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		warnAnswerShape(spec, err)
		return nil, false
	}
	return out, true
}

// decodeFloat accepts a JSON number or a numeric string like "3.14".
func decodeFloat(spec Spec, raw []byte) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		warnAnswerShape(spec, err)
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		warnAnswerShape(spec, err)
		return 0, false
	}
	return f, true
}

func warnAnswerShape(spec Spec, err error) {
	log.Warn().Err(err).Uint("questionID", spec.QuestionID).Str("type", string(spec.Type)).
		Msg("Evaluate: answer has wrong shape, awarding zero points")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
