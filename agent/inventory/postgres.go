package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

const (
	MaxResults      = 5
	budgetTolerance = 0.2
	statusAvailable = "available"
)

type propertyRow struct {
	bun.BaseModel `bun:"table:properties,alias:p"`

	ID           string  `bun:"id,pk"`
	CompanyID    string  `bun:"company_id"`
	Title        string  `bun:"title"`
	Description  string  `bun:"description"`
	PropertyType string  `bun:"property_type"`
	BHKType      string  `bun:"bhk_type"`
	Address      string  `bun:"address"`
	Locality     string  `bun:"locality"`
	City         string  `bun:"city"`
	PriceMin     float64 `bun:"price_min"`
	PriceMax     float64 `bun:"price_max"`
	AreaSqft     float64 `bun:"area_sqft,nullzero"`
	Status       string  `bun:"status"`
}

func (r propertyRow) toProperty() contractx.Property {
	return contractx.Property{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		PropertyType: r.PropertyType,
		BHKType:      r.BHKType,
		Address:      r.Address,
		Locality:     r.Locality,
		City:         r.City,
		PriceMin:     r.PriceMin,
		PriceMax:     r.PriceMax,
		AreaSqft:     r.AreaSqft,
		Status:       r.Status,
	}
}

// PostgresStore queries the properties table.
type PostgresStore struct {
	db bun.IDB
}

func NewPostgresStore(db bun.IDB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Search(ctx context.Context, criteria contractx.SearchCriteria) ([]contractx.Property, error) {
	var rows []propertyRow
	if err := buildQuery(s.db, &rows, criteria).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select properties: %w", err)
	}

	out := make([]contractx.Property, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toProperty())
	}
	return out, nil
}

func buildQuery(db bun.IDB, rows *[]propertyRow, c contractx.SearchCriteria) *bun.SelectQuery {
	q := db.NewSelect().
		Model(rows).
		Where("p.status = ?", statusAvailable)

	if v := strings.TrimSpace(c.CompanyID); v != "" {
		q = q.Where("p.company_id = ?", v)
	}
	if v := strings.TrimSpace(c.PropertyType); v != "" {
		q = q.Where("p.property_type = ?", v)
	}
	if v := strings.TrimSpace(c.BHKType); v != "" {
		q = q.Where("p.bhk_type = ?", v)
	}
	if c.Budget != nil && *c.Budget > 0 {
		lo := *c.Budget * (1 - budgetTolerance)
		hi := *c.Budget * (1 + budgetTolerance)
		q = q.Where("p.price_min <= ?", hi).Where("p.price_max >= ?", lo)
	}
	if v := strings.TrimSpace(c.Location); v != "" {
		pattern := "%" + escapeLike(v) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("p.address ILIKE ?", pattern).
				WhereOr("p.locality ILIKE ?", pattern).
				WhereOr("p.title ILIKE ?", pattern).
				WhereOr("p.description ILIKE ?", pattern)
		})
	}

	return q.OrderExpr("p.price_min ASC").Limit(MaxResults)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}
