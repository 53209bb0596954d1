package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeGraph struct {
	mu sync.Mutex

	pingErr  error
	opErr    error
	pings    int
	snapshot Snapshot

	customers []contractx.Customer
	sessions  []string
	messages  []Message
	prefs     map[string]any
	scores    []int
	viewed    []contractx.Property
	similar   []contractx.Property
	lastQuery SimilarQuery
}

func (f *fakeGraph) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeGraph) EnsureSchema(context.Context) error { return f.opErr }

func (f *fakeGraph) UpsertCustomer(_ context.Context, c contractx.Customer, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.customers = append(f.customers, c)
	return nil
}

func (f *fakeGraph) MergeSession(_ context.Context, _, sessionID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.sessions = append(f.sessions, sessionID)
	return nil
}

func (f *fakeGraph) AddMessage(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeGraph) SetPreferences(_ context.Context, _ string, props map[string]any, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.prefs = props
	return nil
}

func (f *fakeGraph) CustomerSnapshot(context.Context, string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return Snapshot{}, f.opErr
	}
	return f.snapshot, nil
}

func (f *fakeGraph) SetLeadScore(_ context.Context, _ string, score int, _ contractx.Stage, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.scores = append(f.scores, score)
	return nil
}

func (f *fakeGraph) SimilarProperties(_ context.Context, _ string, q SimilarQuery) ([]contractx.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	if f.opErr != nil {
		return nil, f.opErr
	}
	return f.similar, nil
}

func (f *fakeGraph) RecordViewed(_ context.Context, _ string, props []contractx.Property, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.viewed = append(f.viewed, props...)
	return nil
}

func newTestService(store GraphStore) *Service {
	return NewService(store, WithNow(func() time.Time { return testNow }))
}

func TestServiceDisconnectedDegrades(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{pingErr: errors.New("connection refused")}
	svc := newTestService(graph)
	ctx := context.Background()

	if svc.CreateCustomer(ctx, contractx.Customer{ID: "c1"}) {
		t.Fatal("CreateCustomer() = true while disconnected")
	}
	if svc.CreateSession(ctx, "c1", "s1") {
		t.Fatal("CreateSession() = true while disconnected")
	}
	if svc.AddMessageToSession(ctx, "s1", "hi", contractx.RoleUser, testNow) {
		t.Fatal("AddMessageToSession() = true while disconnected")
	}
	if svc.UpdateLeadScore(ctx, "c1", 50, contractx.StageQualification) {
		t.Fatal("UpdateLeadScore() = true while disconnected")
	}
	if got := svc.FindSimilarProperties(ctx, "c1", contractx.LeadInfo{}); len(got) != 0 {
		t.Fatalf("FindSimilarProperties() = %v, want empty", got)
	}

	got := svc.GetCustomerContext(ctx, "c1")
	want := contractx.FallbackMemoryContext()
	if got.InteractionHistory != want.InteractionHistory || got.LeadJourney.Score != 0 || got.LeadJourney.Stage != want.LeadJourney.Stage {
		t.Fatalf("GetCustomerContext() = %+v, want fallback", got)
	}

	if graph.pings != 1 {
		t.Fatalf("expected one cached ping, got %d", graph.pings)
	}
}

func TestServiceNilStore(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	if svc.Connected(context.Background()) {
		t.Fatal("nil store must be disconnected")
	}
	if got := svc.GetCustomerContext(context.Background(), "c1"); got.InteractionHistory.EngagementLevel != contractx.EngagementLow {
		t.Fatalf("expected fallback context, got %+v", got)
	}
}

func TestServicePingIsCachedUntilFailure(t *testing.T) {
	t.Parallel()

	now := testNow
	graph := &fakeGraph{}
	svc := NewService(graph, WithNow(func() time.Time { return now }))
	ctx := context.Background()

	svc.CreateSession(ctx, "c1", "s1")
	svc.CreateSession(ctx, "c1", "s1")
	if graph.pings != 1 {
		t.Fatalf("expected 1 ping within cache ttl, got %d", graph.pings)
	}

	now = now.Add(time.Minute)
	svc.CreateSession(ctx, "c1", "s1")
	if graph.pings != 2 {
		t.Fatalf("expected re-ping after ttl, got %d", graph.pings)
	}

	graph.opErr = errors.New("write failed")
	if svc.CreateSession(ctx, "c1", "s1") {
		t.Fatal("expected false on write failure")
	}
	graph.opErr = nil
	svc.CreateSession(ctx, "c1", "s1")
	if graph.pings != 3 {
		t.Fatalf("expected re-ping after failed op, got %d", graph.pings)
	}
}

func TestServiceAddMessageIsIdempotent(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{}
	svc := newTestService(graph)
	ctx := context.Background()

	svc.AddMessageToSession(ctx, "s1", "I want a villa", contractx.RoleUser, testNow)
	svc.AddMessageToSession(ctx, "s1", "I want a villa", contractx.RoleUser, testNow)
	svc.AddMessageToSession(ctx, "s1", "I want a villa", contractx.RoleAssistant, testNow)

	if len(graph.messages) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(graph.messages))
	}
	if graph.messages[0].ID != graph.messages[1].ID {
		t.Fatal("identical messages must share an id")
	}
	if graph.messages[0].ID == graph.messages[2].ID {
		t.Fatal("different roles must not share an id")
	}
	if svc.AddMessageToSession(ctx, "s1", "   ", contractx.RoleUser, testNow) {
		t.Fatal("blank message must be rejected")
	}
}

func TestServiceGetCustomerContext(t *testing.T) {
	t.Parallel()

	last := testNow.Add(-time.Hour)
	graph := &fakeGraph{snapshot: Snapshot{
		Properties: map[string]any{
			"id":                   "c1",
			"pref_location":        "coimbatore",
			"pref_propertyType":    "villa",
			"pref_favouriteColour": "blue",
			"prefjson_budgetRange": `{"max":5000000,"min":4500000}`,
		},
		SessionCount:    2,
		MessageCount:    12,
		LastInteraction: last,
		LeadStage:       "budget_collection",
		LeadScore:       40,
	}}
	svc := newTestService(graph)

	got := svc.GetCustomerContext(context.Background(), "c1")
	if got.InteractionHistory.EngagementLevel != contractx.EngagementHigh {
		t.Fatalf("engagement = %s, want high", got.InteractionHistory.EngagementLevel)
	}
	if got.InteractionHistory.TotalConversations != 2 || !got.InteractionHistory.LastInteraction.Equal(last) {
		t.Fatalf("unexpected interaction history: %+v", got.InteractionHistory)
	}
	if got.LeadJourney.Stage != "budget_collection" || got.LeadJourney.Score != 40 {
		t.Fatalf("unexpected lead journey: %+v", got.LeadJourney)
	}
	if got.Preferences["location"] != "coimbatore" || got.Preferences["favouriteColour"] != "blue" {
		t.Fatalf("unexpected preferences: %v", got.Preferences)
	}
	rng, ok := got.Preferences["budgetRange"].(map[string]any)
	if !ok || rng["max"] != float64(5000000) {
		t.Fatalf("budgetRange not decoded: %v", got.Preferences["budgetRange"])
	}
	if _, ok := got.LeadJourney.Requirements["favouriteColour"]; ok {
		t.Fatal("requirements must only hold requirement keys")
	}
	if got.LeadJourney.Requirements["propertyType"] != "villa" {
		t.Fatalf("unexpected requirements: %v", got.LeadJourney.Requirements)
	}
}

func TestServiceEngagementThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		messages int
		want     contractx.EngagementLevel
	}{
		{messages: 0, want: contractx.EngagementLow},
		{messages: 5, want: contractx.EngagementLow},
		{messages: 6, want: contractx.EngagementMedium},
		{messages: 10, want: contractx.EngagementMedium},
		{messages: 11, want: contractx.EngagementHigh},
	}
	svc := newTestService(&fakeGraph{})
	for _, tc := range tests {
		if got := svc.engagement(tc.messages); got != tc.want {
			t.Fatalf("engagement(%d) = %s, want %s", tc.messages, got, tc.want)
		}
	}
}

func TestServiceCustomerNotFoundReturnsFallback(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{opErr: ErrCustomerNotFound}
	svc := newTestService(graph)

	got := svc.GetCustomerContext(context.Background(), "missing")
	if got.InteractionHistory.TotalConversations != 1 || got.LeadJourney.Score != 0 {
		t.Fatalf("expected fallback, got %+v", got)
	}
}

func TestServiceUpdatePreferencesFlattensValues(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{}
	svc := newTestService(graph)

	ok := svc.UpdateCustomerPreferences(context.Background(), "c1", map[string]any{
		"location":    "chennai",
		"budget":      5_000_000.0,
		"budgetRange": map[string]any{"min": 4_500_000.0, "max": 5_000_000.0},
	})
	if !ok {
		t.Fatal("UpdateCustomerPreferences() = false")
	}
	if graph.prefs["pref_location"] != "chennai" || graph.prefs["pref_budget"] != 5_000_000.0 {
		t.Fatalf("unexpected primitive props: %v", graph.prefs)
	}
	if v, ok := graph.prefs["pref_budgetRange"]; !ok || v != nil {
		t.Fatalf("expected nulled primitive variant for budgetRange, got %v", v)
	}
	if _, ok := graph.prefs["prefjson_budgetRange"].(string); !ok {
		t.Fatalf("expected JSON budgetRange, got %v", graph.prefs["prefjson_budgetRange"])
	}

	back := preferencesFromProps(graph.prefs)
	if back["location"] != "chennai" {
		t.Fatalf("round trip lost location: %v", back)
	}
}

func TestServiceLeadScoreIsClamped(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{}
	svc := newTestService(graph)
	svc.UpdateLeadScore(context.Background(), "c1", 140, contractx.StagePropertyMatching)
	svc.UpdateLeadScore(context.Background(), "c1", -3, contractx.StageGreeting)

	if len(graph.scores) != 2 || graph.scores[0] != 100 || graph.scores[1] != 0 {
		t.Fatalf("unexpected scores: %v", graph.scores)
	}
}

func TestServiceRecordViewedSkipsSamples(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{}
	svc := newTestService(graph)
	ok := svc.RecordViewedProperties(context.Background(), "c1", []contractx.Property{
		{ID: "p1", Title: "Villa"},
		{ID: "sample-1", Title: "Sample", Sample: true},
	})
	if !ok {
		t.Fatal("RecordViewedProperties() = false")
	}
	if len(graph.viewed) != 1 || graph.viewed[0].ID != "p1" {
		t.Fatalf("unexpected viewed: %+v", graph.viewed)
	}
}

func TestServiceFindSimilarBuildsQuery(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{similar: []contractx.Property{{ID: "p9", Title: "Lake View Villa"}}}
	svc := newTestService(graph)
	budget := 5_000_000.0

	got := svc.FindSimilarProperties(context.Background(), "c1", contractx.LeadInfo{
		PropertyType: contractx.PropertyVilla,
		Location:     " Coimbatore ",
		Budget:       &budget,
	})
	if len(got) != 1 || got[0].ID != "p9" {
		t.Fatalf("unexpected similar: %+v", got)
	}
	q := graph.lastQuery
	if q.PropertyType != "villa" || q.Location != "coimbatore" || q.Budget != budget || q.Limit != 3 {
		t.Fatalf("unexpected query: %+v", q)
	}
}

func TestMessageIDIsDeterministic(t *testing.T) {
	t.Parallel()

	a := messageID("s1", contractx.RoleUser, "hello", testNow)
	b := messageID("s1", contractx.RoleUser, "hello", testNow.In(time.FixedZone("IST", 19800)))
	if a != b {
		t.Fatal("same instant in another zone must yield the same id")
	}
	if a == messageID("s1", contractx.RoleUser, "hello", testNow.Add(time.Second)) {
		t.Fatal("different timestamps must yield different ids")
	}
}
