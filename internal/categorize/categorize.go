// Package categorize scores a normalized message against the built-in label
// categories and the keyword table, and picks primary and secondary categories.
package categorize

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/taskeroo/taskeroo/internal/keywords"
	"github.com/taskeroo/taskeroo/internal/types"
)

// Scoring weights.
const (
	keywordWeight   = 1.0
	labelWeight     = 1.0
	unreadWeight    = 0.5
	importantWeight = 1.0

	maxSecondary = 2
)

// labelCategories maps provider category labels to built-in categories.
var labelCategories = map[string]string{
	types.LabelPersonal:   types.CategoryPersonal,
	types.LabelSocial:     types.CategorySocial,
	types.LabelPromotions: types.CategoryPromotions,
	types.LabelUpdates:    types.CategoryUpdates,
	types.LabelForums:     types.CategoryForums,
}

// Score is one category's accumulated score.
type Score struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Scores is the full ranked score list. It marshals as a JSON object keyed by
// category, in rank order.
type Scores []Score

// MarshalJSON writes the scores as an ordered JSON object.
func (s Scores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(sc.Category)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(sc.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the outcome of categorizing one message.
type Result struct {
	PrimaryCategory     string   `json:"primary_category"`
	SecondaryCategories []string `json:"secondary_categories"`
	Confidence          float64  `json:"confidence"`
	AllCategories       Scores   `json:"all_categories"`
}

// AllCategoriesJSON returns the ranked scores as a JSON object string.
func (r Result) AllCategoriesJSON() string {
	data, err := json.Marshal(r.AllCategories)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Apply copies the derived category fields of r onto e.
func (r Result) Apply(e *types.Email) {
	e.Category = r.PrimaryCategory
	e.SecondaryCategories = append([]string(nil), r.SecondaryCategories...)
	e.ConfidenceScore = r.Confidence
	e.AllCategories = r.AllCategoriesJSON()
}

// Categorize scores msg. It is pure: the same message and table always give
// the same result.
func Categorize(msg *types.NormalizedMessage, table keywords.Table) Result {
	order, index := categoryOrder(table)
	scores := make([]float64, len(order))

	subject := strings.ToLower(msg.Subject)
	body := strings.ToLower(msg.EmailBody)
	sender := strings.ToLower(msg.SenderEmail)

	table.Each(func(category string, kws []string) {
		i := index[category]
		for _, kw := range kws {
			k := strings.ToLower(kw)
			if strings.Contains(subject, k) || strings.Contains(body, k) || strings.Contains(sender, k) {
				scores[i] += keywordWeight
			}
		}
	})

	seen := make(map[string]bool, len(msg.LabelIDs))
	for _, label := range msg.LabelIDs {
		if seen[label] {
			continue
		}
		seen[label] = true
		if c, ok := labelCategories[label]; ok {
			scores[index[c]] += labelWeight
		}
	}
	if !msg.IsRead {
		scores[index[types.CategoryImportantSoft]] += unreadWeight
	}
	if msg.IsImportant {
		scores[index[types.CategoryImportantSoft]] += importantWeight
	}

	ranked := make(Scores, len(order))
	var total float64
	for i, c := range order {
		ranked[i] = Score{Category: c, Score: scores[i]}
		total += scores[i]
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})

	res := Result{
		PrimaryCategory:     ranked[0].Category,
		SecondaryCategories: []string{},
		AllCategories:       ranked,
	}
	for _, s := range ranked[1:] {
		if len(res.SecondaryCategories) == maxSecondary || s.Score <= 0 {
			break
		}
		res.SecondaryCategories = append(res.SecondaryCategories, s.Category)
	}
	if total > 0 {
		res.Confidence = ranked[0].Score / total
	}
	return res
}

// categoryOrder returns built-ins followed by keyword categories in file
// order. A keyword category named like a built-in shares its slot.
func categoryOrder(table keywords.Table) ([]string, map[string]int) {
	order := make([]string, 0, len(types.BuiltinCategories)+table.Len())
	index := make(map[string]int, cap(order))
	add := func(c string) {
		if _, ok := index[c]; ok {
			return
		}
		index[c] = len(order)
		order = append(order, c)
	}
	for _, c := range types.BuiltinCategories {
		add(c)
	}
	for _, c := range table.Categories() {
		add(c)
	}
	return order, index
}
