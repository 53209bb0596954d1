package extract

import (
	"reflect"
	"testing"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func userTurns(texts ...string) []contractx.Turn {
	turns := make([]contractx.Turn, 0, len(texts))
	for i, text := range texts {
		turns = append(turns, contractx.Turn{
			Role:      contractx.RoleUser,
			Content:   text,
			Timestamp: testNow.Add(time.Duration(i) * time.Minute),
		})
	}
	return turns
}

func fptr(v float64) *float64 { return &v }

func TestNormalizeBudget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
	}{
		{in: "10 lakhs", want: 1_000_000},
		{in: "1.5 crore", want: 15_000_000},
		{in: "around 2 cr", want: 20_000_000},
		{in: "45 lac", want: 4_500_000},
		{in: "5500000", want: 5_500_000},
		{in: "55,00,000 rupees", want: 5_500_000},
		{in: "40 to 50 lakhs", want: 5_000_000},
	}
	for _, tc := range cases {
		got, ok := NormalizeBudget(tc.in)
		if !ok {
			t.Fatalf("NormalizeBudget(%q) ok = false", tc.in)
		}
		if got != tc.want {
			t.Fatalf("NormalizeBudget(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "3BHK villa", "1,800 sqft", "call me at 98765"} {
		if got, ok := NormalizeBudget(in); ok {
			t.Fatalf("NormalizeBudget(%q) = %v, want no budget", in, got)
		}
	}
}

func TestFromHistoryPoolsBudgets(t *testing.T) {
	t.Parallel()

	info := FromHistory(userTurns("my budget is 45 lakh", "could stretch to 55 lakh if needed"))

	if info.Budget == nil || *info.Budget != 5_500_000 {
		t.Fatalf("Budget = %v, want 5500000", info.Budget)
	}
	want := &contractx.BudgetRange{Min: 4_500_000, Max: 5_500_000}
	if !reflect.DeepEqual(info.BudgetRange, want) {
		t.Fatalf("BudgetRange = %+v, want %+v", info.BudgetRange, want)
	}
}

func TestFromHistoryRangeAppliesUnitToBothEnds(t *testing.T) {
	t.Parallel()

	info := FromHistory(userTurns("somewhere between 40 to 50 lakhs"))
	want := &contractx.BudgetRange{Min: 4_000_000, Max: 5_000_000}
	if !reflect.DeepEqual(info.BudgetRange, want) {
		t.Fatalf("BudgetRange = %+v, want %+v", info.BudgetRange, want)
	}
}

func TestFromHistoryRecoversEarlierTurns(t *testing.T) {
	t.Parallel()

	info := FromHistory(userTurns(
		"Hi, my name is priya",
		"Looking for a 3BHK villa around 1,800 sq ft",
		"Budget is 55 lakhs in Coimbatore, ideally within 3 months",
	))

	if info.Name != "Priya" {
		t.Fatalf("Name = %q, want Priya", info.Name)
	}
	if info.PropertyType != contractx.PropertyVilla {
		t.Fatalf("PropertyType = %q, want villa", info.PropertyType)
	}
	if info.BHKType != "3BHK" {
		t.Fatalf("BHKType = %q, want 3BHK", info.BHKType)
	}
	if info.Location != "coimbatore" {
		t.Fatalf("Location = %q, want coimbatore", info.Location)
	}
	if info.AreaSqft == nil || *info.AreaSqft != 1800 {
		t.Fatalf("AreaSqft = %v, want 1800", info.AreaSqft)
	}
	if info.Timeline != "within 3 months" {
		t.Fatalf("Timeline = %q", info.Timeline)
	}
	if info.Budget == nil || *info.Budget != 5_500_000 {
		t.Fatalf("Budget = %v, want 5500000", info.Budget)
	}
}

func TestFromHistoryLatestMentionWins(t *testing.T) {
	t.Parallel()

	info := FromHistory(userTurns("an apartment in chennai", "actually a plot in Bengaluru is better"))
	if info.PropertyType != contractx.PropertyPlot {
		t.Fatalf("PropertyType = %q, want plot", info.PropertyType)
	}
	if info.Location != "bangalore" {
		t.Fatalf("Location = %q, want bangalore", info.Location)
	}
}

func TestFromHistoryIgnoresAssistantTurns(t *testing.T) {
	t.Parallel()

	turns := []contractx.Turn{
		{Role: contractx.RoleAssistant, Content: "We have a villa in Chennai for ₹80L, 2 crore options too", Timestamp: testNow},
		{Role: contractx.RoleUser, Content: "hello", Timestamp: testNow},
	}
	if info := FromHistory(turns); !info.IsEmpty() {
		t.Fatalf("FromHistory() = %+v, want empty", info)
	}
}

func TestFromHistoryIsIdempotent(t *testing.T) {
	t.Parallel()

	turns := userTurns(
		"Looking for a 2 bhk flat",
		"budget 60 lakh to 1.2 crore",
		"prefer Kovai, call me Arun",
	)
	first := FromHistory(turns)
	second := FromHistory(turns)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("FromHistory() not idempotent:\n%+v\n%+v", first, second)
	}
	if first.Location != "coimbatore" || first.Name != "Arun" || first.BHKType != "2BHK" {
		t.Fatalf("FromHistory() = %+v", first)
	}
}

func TestHasEnoughContextTruthTable(t *testing.T) {
	t.Parallel()

	for mask := 0; mask < 8; mask++ {
		var info contractx.LeadInfo
		hasLocation := mask&1 != 0
		hasType := mask&2 != 0
		hasBudget := mask&4 != 0
		if hasLocation {
			info.Location = "coimbatore"
		}
		if hasType {
			info.PropertyType = contractx.PropertyVilla
		}
		if hasBudget {
			info.Budget = fptr(5_500_000)
		}

		want := hasLocation && hasType && hasBudget
		if got := HasEnoughContext(info); got != want {
			t.Fatalf("HasEnoughContext(location=%v type=%v budget=%v) = %v, want %v",
				hasLocation, hasType, hasBudget, got, want)
		}
	}

	rangeOnly := contractx.LeadInfo{
		Location:     "chennai",
		PropertyType: contractx.PropertyApartment,
		BudgetRange:  &contractx.BudgetRange{Min: 1, Max: 2},
	}
	if !HasEnoughContext(rangeOnly) {
		t.Fatalf("HasEnoughContext() = false for budget range only")
	}
}

func TestNormalizeBHK(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"3BHK":  "3BHK",
		"2 bhk": "2BHK",
		"4-BHK": "4BHK",
		"1":     "1BHK",
		"large": "",
		"":      "",
	}
	for in, want := range cases {
		if got := NormalizeBHK(in); got != want {
			t.Fatalf("NormalizeBHK(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromHistoryNamePhrases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{text: "you can call me Karthik", want: "Karthik"},
		{text: "My name is meena, looking in Salem", want: "Meena"},
		{text: "Please call me at 6pm", want: ""},
		{text: "call me tomorrow morning", want: ""},
		{text: "call me back after lunch", want: ""},
		{text: "this is within my budget", want: ""},
		{text: "this is Coimbatore side", want: ""},
		{text: "this is Meena", want: ""},
		{text: "call me Coimbatore office", want: ""},
	}
	for _, tc := range tests {
		if got := FromHistory(userTurns(tc.text)).Name; got != tc.want {
			t.Fatalf("FromHistory(%q).Name = %q, want %q", tc.text, got, tc.want)
		}
	}
}
