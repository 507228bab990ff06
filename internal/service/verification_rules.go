package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/noah-isme/user-management-api/internal/models"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

// Rule operators understood by the evaluator.
const (
	OperatorEq     = "eq"
	OperatorNeq    = "neq"
	OperatorGte    = "gte"
	OperatorLte    = "lte"
	OperatorGt     = "gt"
	OperatorLt     = "lt"
	OperatorExists = "exists"
	OperatorIn     = "in"
)

// Subject facts a rule may reference.
const (
	FactEloRating      = "elo_rating"
	FactJobsCompleted  = "jobs_completed"
	FactDialects       = "dialects"
	FactDialectCount   = "dialect_count"
	FactRole           = "role"
	FactStatus         = "status"
	FactIsProfessional = "is_professional"
	FactHasPhone       = "has_phone"
	FactHasIDNumber    = "has_id_number"
)

// ErrInvalidRules is returned when a rules payload cannot be decoded or references unknown terms.
var ErrInvalidRules = appErrors.New("INVALID_RULES", http.StatusBadRequest, "validation rules are invalid")

var knownFacts = map[string]bool{
	FactEloRating: true, FactJobsCompleted: true, FactDialects: true, FactDialectCount: true,
	FactRole: true, FactStatus: true, FactIsProfessional: true, FactHasPhone: true, FactHasIDNumber: true,
}

var numericOperators = map[string]bool{OperatorGte: true, OperatorLte: true, OperatorGt: true, OperatorLt: true}

// ValidationRules is the decoded form of a requirement's rules payload.
type ValidationRules struct {
	Version int    `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Rule compares one subject fact against Value.
type Rule struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// RuleFailure describes a rule the subject did not satisfy.
type RuleFailure struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Expected interface{} `json:"expected,omitempty"`
	Actual   interface{} `json:"actual"`
}

// Facts are the subject attributes rules are evaluated against.
type Facts map[string]interface{}

// EncodeRules validates and serializes rules.
func EncodeRules(rules ValidationRules) ([]byte, error) {
	if err := rules.validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return nil, appErrors.Wrap(err, ErrInvalidRules.Code, ErrInvalidRules.Status, "failed to encode validation rules")
	}
	return raw, nil
}

// DecodeRules parses and validates a serialized rules payload. Unknown keys are rejected.
func DecodeRules(raw []byte) (ValidationRules, error) {
	var rules ValidationRules
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return ValidationRules{}, appErrors.Wrap(err, ErrInvalidRules.Code, ErrInvalidRules.Status, "validation rules are not valid JSON")
	}
	if err := rules.validate(); err != nil {
		return ValidationRules{}, err
	}
	return rules, nil
}

func (v ValidationRules) validate() error {
	if v.Version < 1 {
		return appErrors.Clone(ErrInvalidRules, "validation rules version must be at least 1")
	}
	for i, rule := range v.Rules {
		if !knownFacts[rule.Field] {
			return appErrors.Clone(ErrInvalidRules, fmt.Sprintf("rule %d: unknown field %q", i, rule.Field))
		}
		switch {
		case rule.Operator == OperatorExists:
			if rule.Value != nil {
				if _, ok := rule.Value.(bool); !ok {
					return appErrors.Clone(ErrInvalidRules, fmt.Sprintf("rule %d: exists expects a boolean", i))
				}
			}
		case numericOperators[rule.Operator]:
			if _, ok := toFloat(rule.Value); !ok {
				return appErrors.Clone(ErrInvalidRules, fmt.Sprintf("rule %d: %s expects a number", i, rule.Operator))
			}
		case rule.Operator == OperatorIn:
			if _, ok := rule.Value.([]interface{}); !ok {
				return appErrors.Clone(ErrInvalidRules, fmt.Sprintf("rule %d: in expects a list", i))
			}
		case rule.Operator == OperatorEq || rule.Operator == OperatorNeq:
			if rule.Value == nil {
				return appErrors.Clone(ErrInvalidRules, fmt.Sprintf("rule %d: %s expects a value", i, rule.Operator))
			}
		default:
			return appErrors.Clone(ErrInvalidRules, fmt.Sprintf("rule %d: unknown operator %q", i, rule.Operator))
		}
	}
	return nil
}

// Evaluate checks every rule against facts and returns the failures. An empty result means approved.
func (v ValidationRules) Evaluate(facts Facts) []RuleFailure {
	failures := make([]RuleFailure, 0)
	for _, rule := range v.Rules {
		actual := facts[rule.Field]
		if !rule.matches(actual) {
			failures = append(failures, RuleFailure{Field: rule.Field, Operator: rule.Operator, Expected: rule.Value, Actual: actual})
		}
	}
	return failures
}

func (r Rule) matches(actual interface{}) bool {
	switch r.Operator {
	case OperatorExists:
		want := true
		if b, ok := r.Value.(bool); ok {
			want = b
		}
		return truthy(actual) == want
	case OperatorEq:
		return contains(actual, r.Value)
	case OperatorNeq:
		return !contains(actual, r.Value)
	case OperatorIn:
		values, _ := r.Value.([]interface{})
		for _, candidate := range values {
			if contains(actual, candidate) {
				return true
			}
		}
		return false
	}

	got, ok := toFloat(actual)
	if !ok {
		return false
	}
	want, _ := toFloat(r.Value)
	switch r.Operator {
	case OperatorGte:
		return got >= want
	case OperatorLte:
		return got <= want
	case OperatorGt:
		return got > want
	case OperatorLt:
		return got < want
	}
	return false
}

// contains compares scalars for equality; list facts match when any element equals the value.
func contains(actual, value interface{}) bool {
	if list, ok := actual.([]string); ok {
		for _, item := range list {
			if equal(item, value) {
				return true
			}
		}
		return false
	}
	return equal(actual, value)
}

func equal(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && strings.EqualFold(av, bv)
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []string:
		return len(t) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// SubjectFacts gathers the facts rules evaluate for a user.
func SubjectFacts(user models.User, stats *models.UserStatistics, dialects []models.UserDialect) Facts {
	codes := make([]string, 0, len(dialects))
	for _, d := range dialects {
		codes = append(codes, d.DialectCode)
	}
	sort.Strings(codes)

	jobsCompleted := 0
	if stats != nil {
		jobsCompleted = stats.JobsCompleted
	}
	return Facts{
		FactEloRating:      user.EloRating,
		FactJobsCompleted:  jobsCompleted,
		FactDialects:       codes,
		FactDialectCount:   len(codes),
		FactRole:           string(user.Role),
		FactStatus:         string(user.Status),
		FactIsProfessional: user.IsProfessional,
		FactHasPhone:       user.Phone != nil && strings.TrimSpace(*user.Phone) != "",
		FactHasIDNumber:    strings.TrimSpace(user.IDNumber) != "",
	}
}
