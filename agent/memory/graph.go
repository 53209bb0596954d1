package memory

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

// GraphStore is the raw graph persistence used by Service. Implementations
// return errors; Service turns them into fallbacks.
type GraphStore interface {
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	UpsertCustomer(ctx context.Context, customer contractx.Customer, at time.Time) error
	MergeSession(ctx context.Context, customerID, sessionID string, at time.Time) error
	AddMessage(ctx context.Context, msg Message) error
	SetPreferences(ctx context.Context, customerID string, props map[string]any, at time.Time) error
	CustomerSnapshot(ctx context.Context, customerID string) (Snapshot, error)
	SetLeadScore(ctx context.Context, customerID string, score int, stage contractx.Stage, at time.Time) error
	SimilarProperties(ctx context.Context, customerID string, q SimilarQuery) ([]contractx.Property, error)
	RecordViewed(ctx context.Context, customerID string, props []contractx.Property, at time.Time) error
}

type Message struct {
	ID        string
	SessionID string
	Content   string
	Role      contractx.Role
	CreatedAt time.Time
}

// Snapshot is the raw customer aggregate read back from the graph.
type Snapshot struct {
	Properties      map[string]any
	SessionCount    int
	MessageCount    int
	LastInteraction time.Time
	LeadStage       string
	LeadScore       int
}

type SimilarQuery struct {
	PropertyType string
	Location     string
	Budget       float64
	Limit        int
}

const (
	prefPrefix     = "pref_"
	prefJSONPrefix = "prefjson_"
)

var requirementKeys = map[string]bool{
	"location":     true,
	"propertyType": true,
	"bhkType":      true,
	"budget":       true,
	"budgetRange":  true,
	"areaSqft":     true,
	"timeline":     true,
}

// messageID is stable for the same session, role, content and timestamp so a
// retried write merges onto the existing node.
func messageID(sessionID string, role contractx.Role, content string, at time.Time) string {
	name := strings.Join([]string{sessionID, string(role), content, at.UTC().Format(time.RFC3339Nano)}, "\x1f")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// preferenceProps flattens preferences into node properties. Primitive values
// land under pref_<key>; everything else is JSON under prefjson_<key>. The
// other variant is nulled so a type change leaves no stale property behind.
func preferenceProps(prefs map[string]any) map[string]any {
	out := make(map[string]any, len(prefs)*2)
	for k, v := range prefs {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if isPrimitive(v) {
			out[prefPrefix+k] = v
			out[prefJSONPrefix+k] = nil
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[prefJSONPrefix+k] = string(raw)
		out[prefPrefix+k] = nil
	}
	return out
}

// preferencesFromProps is the inverse of preferenceProps.
func preferencesFromProps(props map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range props {
		switch {
		case strings.HasPrefix(k, prefJSONPrefix):
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var decoded any
			if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
				continue
			}
			out[strings.TrimPrefix(k, prefJSONPrefix)] = decoded
		case strings.HasPrefix(k, prefPrefix):
			if v != nil {
				out[strings.TrimPrefix(k, prefPrefix)] = v
			}
		}
	}
	return out
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func requirementsFrom(prefs map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range prefs {
		if requirementKeys[k] {
			out[k] = v
		}
	}
	return out
}
