package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

const (
	lakh  = 100_000
	crore = 10_000_000
)

var (
	rangePattern        = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:-|to)\s*(\d+(?:\.\d+)?)\s*(lakhs?|lacs?|crores?|cr|l)\b`)
	unitPattern         = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(lakhs?|lacs?|crores?|cr|l)\b`)
	bareNumberPattern   = regexp.MustCompile(`\b\d{1,3}(?:,\d{2,3})+\b|\b\d{7,}\b`)
	bhkPattern          = regexp.MustCompile(`(?i)\b(\d)\s*-?\s*bhk\b`)
	areaPattern         = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(?:sq\.?\s*ft|sqft|sft|square\s+feet)\b`)
	propertyTypePattern = regexp.MustCompile(`(?i)\b(villas?|independent house|apartments?|flats?|plots?|land)\b`)
	namePattern         = regexp.MustCompile(`(?i)\b(?:my name is|name's|call me)\s+([a-z][a-z'.-]*)`)
	timelinePattern     = regexp.MustCompile(`(?i)\b(immediately|asap|urgently|(?:within|in|next)\s+(?:\d+|a|one|two|three|six)\s+(?:weeks?|months?|years?))\b`)
	cityPattern         = regexp.MustCompile(`(?i)\b(` + strings.Join(knownCityNames(), "|") + `)\b`)
)

var cityAliases = map[string]string{
	"coimbatore": "coimbatore",
	"kovai":      "coimbatore",
	"chennai":    "chennai",
	"madras":     "chennai",
	"bangalore":  "bangalore",
	"bengaluru":  "bangalore",
	"mumbai":     "mumbai",
	"bombay":     "mumbai",
	"hyderabad":  "hyderabad",
	"pune":       "pune",
	"delhi":      "delhi",
	"noida":      "noida",
	"gurgaon":    "gurgaon",
	"gurugram":   "gurgaon",
	"kolkata":    "kolkata",
	"ahmedabad":  "ahmedabad",
	"kochi":      "kochi",
	"cochin":     "kochi",
	"madurai":    "madurai",
	"trichy":     "trichy",
	"salem":      "salem",
	"tiruppur":   "tiruppur",
	"erode":      "erode",
	"ooty":       "ooty",
	"mysore":     "mysore",
	"mysuru":     "mysore",
}

// notNames are words that follow "call me" or "my name is" without naming
// anyone: prepositions, times and filler.
var notNames = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "for": true, "about": true,
	"it": true, "is": true, "what": true, "not": true, "regarding": true,
	"at": true, "on": true, "in": true, "by": true, "after": true, "before": true,
	"around": true, "between": true, "within": true, "from": true, "to": true,
	"back": true, "later": true, "now": true, "today": true, "tomorrow": true,
	"tonight": true, "morning": true, "evening": true, "afternoon": true,
	"anytime": true, "sometime": true, "whenever": true, "when": true, "if": true,
	"once": true, "soon": true, "asap": true, "please": true, "again": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true, "weekend": true,
}

func knownCityNames() []string {
	names := make([]string, 0, len(cityAliases))
	for name := range cityAliases {
		names = append(names, regexp.QuoteMeta(name))
	}
	sort.Strings(names)
	return names
}

// FromHistory re-derives preferences from every customer turn. It has no
// side effects and returns the same result for the same input. Scalar
// fields take the latest mention; all budget mentions are pooled.
func FromHistory(turns []contractx.Turn) contractx.LeadInfo {
	var (
		info    contractx.LeadInfo
		budgets []float64
	)

	for _, turn := range turns {
		if turn.Role != contractx.RoleUser {
			continue
		}
		text := turn.Content
		if strings.TrimSpace(text) == "" {
			continue
		}

		budgets = append(budgets, budgetMentions(text)...)

		if v := lastPropertyType(text); v != "" {
			info.PropertyType = v
		}
		if v := lastBHK(text); v != "" {
			info.BHKType = v
		}
		if v, ok := lastArea(text); ok {
			info.AreaSqft = &v
		}
		if v := lastCity(text); v != "" {
			info.Location = v
		}
		if v := lastName(text); v != "" {
			info.Name = v
		}
		if v := lastTimeline(text); v != "" {
			info.Timeline = v
		}
	}

	if len(budgets) > 0 {
		lo, hi := budgets[0], budgets[0]
		for _, b := range budgets[1:] {
			lo = min(lo, b)
			hi = max(hi, b)
		}
		info.Budget = &hi
		info.BudgetRange = &contractx.BudgetRange{Min: lo, Max: hi}
	}
	return info
}

// HasEnoughContext reports whether a property search can be attempted.
func HasEnoughContext(info contractx.LeadInfo) bool {
	return info.Location != "" && info.PropertyType != "" && info.HasBudget()
}

// NormalizeBudget reads the most generous budget figure out of a phrase.
func NormalizeBudget(text string) (float64, bool) {
	mentions := budgetMentions(text)
	if len(mentions) == 0 {
		return 0, false
	}
	best := mentions[0]
	for _, m := range mentions[1:] {
		best = max(best, m)
	}
	return best, true
}

func budgetMentions(text string) []float64 {
	var out []float64

	for _, m := range rangePattern.FindAllStringSubmatch(text, -1) {
		mult := unitMultiplier(m[3])
		if lo, err := strconv.ParseFloat(m[1], 64); err == nil {
			out = append(out, lo*mult)
		}
		if hi, err := strconv.ParseFloat(m[2], 64); err == nil {
			out = append(out, hi*mult)
		}
	}

	for _, m := range unitPattern.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			out = append(out, v*unitMultiplier(m[2]))
		}
	}

	for _, m := range bareNumberPattern.FindAllString(text, -1) {
		digits := strings.ReplaceAll(m, ",", "")
		if len(digits) < 7 {
			continue
		}
		if v, err := strconv.ParseFloat(digits, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func unitMultiplier(unit string) float64 {
	u := strings.ToLower(unit)
	if strings.HasPrefix(u, "c") {
		return crore
	}
	return lakh
}

func lastPropertyType(text string) contractx.PropertyType {
	matches := propertyTypePattern.FindAllString(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if pt, ok := contractx.ParsePropertyType(matches[i]); ok {
			return pt
		}
	}
	return ""
}

func lastBHK(text string) string {
	matches := bhkPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1] + "BHK"
}

// NormalizeBHK maps "3 bhk", "3-BHK" or "3" onto "3BHK".
func NormalizeBHK(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if m := bhkPattern.FindStringSubmatch(v); m != nil {
		return m[1] + "BHK"
	}
	if len(v) == 1 && unicode.IsDigit(rune(v[0])) {
		return v + "BHK"
	}
	return ""
}

func lastArea(text string) (float64, bool) {
	matches := areaPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(matches[len(matches)-1][1], ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func lastCity(text string) string {
	matches := cityPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return NormalizeLocation(matches[len(matches)-1])
}

// NormalizeLocation lowercases v and folds known city aliases.
func NormalizeLocation(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if canonical, ok := cityAliases[v]; ok {
		return canonical
	}
	return v
}

func lastName(text string) string {
	matches := namePattern.FindAllStringSubmatch(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		word := strings.Trim(matches[i][1], "'.-")
		if !plausibleName(word) {
			continue
		}
		return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return ""
}

func plausibleName(word string) bool {
	lower := strings.ToLower(word)
	if lower == "" || notNames[lower] {
		return false
	}
	if _, city := cityAliases[lower]; city {
		return false
	}
	if _, ok := contractx.ParsePropertyType(lower); ok {
		return false
	}
	return true
}

func lastTimeline(text string) string {
	matches := timelinePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.ToLower(matches[len(matches)-1])
}
