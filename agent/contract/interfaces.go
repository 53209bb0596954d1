package contract

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// TextCompleter always returns a usable reply. A non-nil error reports that
// the reply is a canned fallback rather than a model completion.
type TextCompleter interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

type TurnExtractor interface {
	Extract(ctx context.Context, text string) LeadInfo
}

// MemoryService is the never-failing view of the graph memory store.
type MemoryService interface {
	CreateCustomer(ctx context.Context, customer Customer) bool
	CreateSession(ctx context.Context, customerID, sessionID string) bool
	AddMessageToSession(ctx context.Context, sessionID, content string, role Role, at time.Time) bool
	UpdateCustomerPreferences(ctx context.Context, customerID string, prefs map[string]any) bool
	GetCustomerContext(ctx context.Context, customerID string) CustomerMemoryContext
	UpdateLeadScore(ctx context.Context, customerID string, score int, stage Stage) bool
	FindSimilarProperties(ctx context.Context, customerID string, req LeadInfo) []Property
	RecordViewedProperties(ctx context.Context, customerID string, props []Property) bool
}

type InventorySearcher interface {
	Search(ctx context.Context, criteria SearchCriteria) []Property
}
