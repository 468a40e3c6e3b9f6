// Package scope decides whether a question belongs to the PQT-U dispensation
// domain and which sub-category it falls into.
package scope

import "strings"

// Category selects the prompt variant for an in-scope question.
type Category string

const (
	CategoryDosing      Category = "dosing"
	CategorySafety      Category = "safety"
	CategoryInteraction Category = "interaction"
	CategoryProcedure   Category = "procedure"
	CategoryGeneral     Category = "general"
)

// Decision is the outcome of classifying one question.
type Decision struct {
	InScope  bool     `json:"in_scope"`
	Category Category `json:"category"`
	// Matched is the keyword that settled the scope outcome, empty when nothing matched.
	Matched string `json:"matched,omitempty"`
}

type bucket struct {
	category Category
	keywords []string
}

// Classifier is a keyword-substring scope classifier. It is safe for concurrent use.
type Classifier struct {
	negative []string
	positive []string
	buckets  []bucket
}

// New creates a Classifier from the given keyword sets.
func New(kw Keywords) *Classifier {
	positive := append(lower(kw.Positive), lower(kw.Drugs)...)
	return &Classifier{
		negative: lower(kw.Negative),
		positive: positive,
		buckets: []bucket{
			{CategoryDosing, lower(kw.Dosing)},
			{CategorySafety, lower(kw.Safety)},
			{CategoryInteraction, lower(kw.Interaction)},
			{CategoryProcedure, lower(kw.Procedure)},
		},
	}
}

// Classify never fails; questions matching nothing are out of scope.
// Negative keywords veto the question even when a drug name is present.
func (c *Classifier) Classify(question string) Decision {
	q := strings.ToLower(question)

	if kw, ok := firstMatch(q, c.negative); ok {
		return Decision{InScope: false, Category: CategoryGeneral, Matched: kw}
	}

	kw, ok := firstMatch(q, c.positive)
	if !ok {
		return Decision{InScope: false, Category: CategoryGeneral}
	}

	d := Decision{InScope: true, Category: CategoryGeneral, Matched: kw}
	for _, b := range c.buckets {
		if _, ok := firstMatch(q, b.keywords); ok {
			d.Category = b.category
			break
		}
	}
	return d
}

func firstMatch(q string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(q, kw) {
			return kw, true
		}
	}
	return "", false
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
