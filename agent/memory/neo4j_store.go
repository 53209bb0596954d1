package memory

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	neo4jdb "github.com/redlitmus-in/real-estate-crm/pkg/neo4jdb"
)

var ErrCustomerNotFound = errors.New("customer not found in graph")

var schemaStatements = []string{
	`CREATE CONSTRAINT customer_id_unique IF NOT EXISTS FOR (c:Customer) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT session_id_unique IF NOT EXISTS FOR (s:Session) REQUIRE s.id IS UNIQUE`,
	`CREATE CONSTRAINT message_id_unique IF NOT EXISTS FOR (m:Message) REQUIRE m.id IS UNIQUE`,
	`CREATE CONSTRAINT property_id_unique IF NOT EXISTS FOR (p:Property) REQUIRE p.id IS UNIQUE`,
}

// Neo4jStore keeps customers, sessions, messages, leads and viewed
// properties as a graph. Every write is an idempotent MERGE.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ GraphStore = (*Neo4jStore)(nil)

func NewNeo4jStore(client *neo4jdb.Client) (*Neo4jStore, error) {
	if client == nil || client.Driver == nil {
		return nil, neo4jdb.ErrNotConfigured
	}
	return &Neo4jStore{driver: client.Driver, database: client.Database}, nil
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return err
		}
		if _, err := res.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Neo4jStore) UpsertCustomer(ctx context.Context, customer contractx.Customer, at time.Time) error {
	return s.write(ctx, `
MERGE (c:Customer {id: $id})
ON CREATE SET c.created_at = $at
SET c.company_id = $company_id,
    c.name = CASE WHEN $name = '' THEN c.name ELSE $name END,
    c.whatsapp_number = CASE WHEN $whatsapp = '' THEN c.whatsapp_number ELSE $whatsapp END,
    c.telegram_chat_id = CASE WHEN $telegram = '' THEN c.telegram_chat_id ELSE $telegram END,
    c.email = CASE WHEN $email = '' THEN c.email ELSE $email END,
    c.updated_at = $at
`, map[string]any{
		"id":         customer.ID,
		"company_id": customer.CompanyID,
		"name":       customer.Name,
		"whatsapp":   customer.WhatsAppNumber,
		"telegram":   customer.TelegramChatID,
		"email":      customer.Email,
		"at":         at.UTC(),
	})
}

func (s *Neo4jStore) MergeSession(ctx context.Context, customerID, sessionID string, at time.Time) error {
	return s.write(ctx, `
MERGE (c:Customer {id: $customer_id})
ON CREATE SET c.created_at = $at
MERGE (s:Session {id: $session_id})
ON CREATE SET s.started_at = $at
MERGE (c)-[:HAS_SESSION]->(s)
`, map[string]any{
		"customer_id": customerID,
		"session_id":  sessionID,
		"at":          at.UTC(),
	})
}

func (s *Neo4jStore) AddMessage(ctx context.Context, msg Message) error {
	return s.write(ctx, `
MERGE (s:Session {id: $session_id})
ON CREATE SET s.started_at = $at
MERGE (m:Message {id: $id})
ON CREATE SET m.content = $content, m.role = $role, m.created_at = $at
MERGE (s)-[:HAS_MESSAGE]->(m)
SET s.last_message_at = $at
`, map[string]any{
		"id":         msg.ID,
		"session_id": msg.SessionID,
		"content":    msg.Content,
		"role":       string(msg.Role),
		"at":         msg.CreatedAt.UTC(),
	})
}

func (s *Neo4jStore) SetPreferences(ctx context.Context, customerID string, props map[string]any, at time.Time) error {
	return s.write(ctx, `
MERGE (c:Customer {id: $customer_id})
ON CREATE SET c.created_at = $at
SET c += $props, c.preferences_updated_at = $at
`, map[string]any{
		"customer_id": customerID,
		"props":       props,
		"at":          at.UTC(),
	})
}

func (s *Neo4jStore) CustomerSnapshot(ctx context.Context, customerID string) (Snapshot, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Customer {id: $customer_id})
OPTIONAL MATCH (c)-[:HAS_SESSION]->(s:Session)
OPTIONAL MATCH (s)-[:HAS_MESSAGE]->(m:Message)
WITH c, count(DISTINCT s) AS sessions, count(DISTINCT m) AS messages, max(m.created_at) AS last_message_at
OPTIONAL MATCH (c)-[:HAS_LEAD]->(l:Lead)
RETURN properties(c) AS props, sessions, messages, last_message_at, l.stage AS lead_stage, l.score AS lead_score
`, map[string]any{"customer_id": customerID})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, ErrCustomerNotFound
		}
		record := res.Record()

		snap := Snapshot{
			SessionCount: intFromRecord(record, "sessions"),
			MessageCount: intFromRecord(record, "messages"),
			LeadStage:    stringFromRecord(record, "lead_stage"),
			LeadScore:    intFromRecord(record, "lead_score"),
		}
		if props, ok := record.Get("props"); ok {
			if m, ok := props.(map[string]any); ok {
				snap.Properties = m
			}
		}
		if v, ok := record.Get("last_message_at"); ok {
			if ts, ok := v.(time.Time); ok {
				snap.LastInteraction = ts
			}
		}
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return out.(Snapshot), nil
}

func (s *Neo4jStore) SetLeadScore(ctx context.Context, customerID string, score int, stage contractx.Stage, at time.Time) error {
	return s.write(ctx, `
MERGE (c:Customer {id: $customer_id})
ON CREATE SET c.created_at = $at
MERGE (c)-[:HAS_LEAD]->(l:Lead {customer_id: $customer_id})
ON CREATE SET l.created_at = $at
SET l.score = $score, l.stage = $stage, l.updated_at = $at
`, map[string]any{
		"customer_id": customerID,
		"score":       int64(score),
		"stage":       string(stage),
		"at":          at.UTC(),
	})
}

// SimilarProperties ranks properties other customers viewed that match the
// requested type, location and budget, excluding ones this customer has seen.
func (s *Neo4jStore) SimilarProperties(ctx context.Context, customerID string, q SimilarQuery) ([]contractx.Property, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (other:Customer)-[:VIEWED]->(p:Property)
WHERE other.id <> $customer_id
  AND ($property_type = '' OR p.property_type = $property_type)
  AND ($location = '' OR toLower(coalesce(p.city, '')) CONTAINS $location OR toLower(coalesce(p.locality, '')) CONTAINS $location)
  AND ($budget = 0.0 OR coalesce(p.price_min, 0.0) <= $budget * 1.2)
  AND NOT EXISTS { MATCH (:Customer {id: $customer_id})-[:VIEWED]->(p) }
WITH p, count(DISTINCT other) AS viewers
ORDER BY viewers DESC, p.id
LIMIT $limit
RETURN p.id AS id, p.title AS title, p.property_type AS property_type, p.bhk_type AS bhk_type,
       p.locality AS locality, p.city AS city, p.price_min AS price_min, p.price_max AS price_max
`, map[string]any{
			"customer_id":   customerID,
			"property_type": q.PropertyType,
			"location":      q.Location,
			"budget":        q.Budget,
			"limit":         int64(q.Limit),
		})
		if err != nil {
			return nil, err
		}

		var props []contractx.Property
		for res.Next(ctx) {
			record := res.Record()
			props = append(props, contractx.Property{
				ID:           stringFromRecord(record, "id"),
				Title:        stringFromRecord(record, "title"),
				PropertyType: stringFromRecord(record, "property_type"),
				BHKType:      stringFromRecord(record, "bhk_type"),
				Locality:     stringFromRecord(record, "locality"),
				City:         stringFromRecord(record, "city"),
				PriceMin:     floatFromRecord(record, "price_min"),
				PriceMax:     floatFromRecord(record, "price_max"),
				Status:       "available",
			})
		}
		return props, res.Err()
	})
	if err != nil {
		return nil, err
	}
	props, _ := out.([]contractx.Property)
	return props, nil
}

func (s *Neo4jStore) RecordViewed(ctx context.Context, customerID string, props []contractx.Property, at time.Time) error {
	rows := make([]map[string]any, 0, len(props))
	for _, p := range props {
		if p.ID == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"id":            p.ID,
			"title":         p.Title,
			"property_type": p.PropertyType,
			"bhk_type":      p.BHKType,
			"locality":      p.Locality,
			"city":          p.City,
			"price_min":     p.PriceMin,
			"price_max":     p.PriceMax,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	return s.write(ctx, `
MERGE (c:Customer {id: $customer_id})
ON CREATE SET c.created_at = $at
WITH c
UNWIND $rows AS r
MERGE (p:Property {id: r.id})
SET p.title = r.title,
    p.property_type = r.property_type,
    p.bhk_type = r.bhk_type,
    p.locality = r.locality,
    p.city = r.city,
    p.price_min = r.price_min,
    p.price_max = r.price_max
MERGE (c)-[v:VIEWED]->(p)
ON CREATE SET v.first_viewed_at = $at, v.count = 0
SET v.count = v.count + 1, v.last_viewed_at = $at
`, map[string]any{
		"customer_id": customerID,
		"rows":        rows,
		"at":          at.UTC(),
	})
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func (s *Neo4jStore) write(ctx context.Context, cypher string, params map[string]any) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func stringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func intFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func floatFromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}
