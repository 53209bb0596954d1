package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

var ErrNotConfigured = errors.New("inventory store not configured")

// Searcher is a raw inventory query that may fail.
type Searcher interface {
	Search(ctx context.Context, criteria contractx.SearchCriteria) ([]contractx.Property, error)
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// Service never fails: a broken or missing store yields sample listings.
type Service struct {
	store   Searcher
	timeout time.Duration
}

var _ contractx.InventorySearcher = (*Service)(nil)

func NewService(store Searcher, opts ...Option) *Service {
	s := &Service{
		store:   store,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Search(ctx context.Context, criteria contractx.SearchCriteria) []contractx.Property {
	if s.store == nil {
		return s.fallback(criteria, ErrNotConfigured)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	props, err := s.store.Search(ctx, criteria)
	if err != nil {
		return s.fallback(criteria, fmt.Errorf("%w: %v", contractx.ErrDependencyUnavailable, err))
	}
	if len(props) > MaxResults {
		props = props[:MaxResults]
	}
	return props
}

func (s *Service) fallback(criteria contractx.SearchCriteria, err error) []contractx.Property {
	samples := SampleProperties(criteria)
	logx.Warn().
		Err(err).
		Str("event", "inventory.fallback").
		Str("dependency", "inventory").
		Str("location", criteria.Location).
		Int("samples", len(samples)).
		Msg("inventory.fallback")
	return samples
}

// SampleProperties is the placeholder inventory shown when the store is down.
// Every entry is tagged with the requested location and marked Sample.
func SampleProperties(criteria contractx.SearchCriteria) []contractx.Property {
	location := strings.TrimSpace(criteria.Location)
	if location == "" {
		location = "city centre"
	}
	place := titleCase(location)

	bhk := criteria.BHKType
	if bhk == "" {
		bhk = "3BHK"
	}

	priceMin, priceMax := 4_500_000.0, 5_000_000.0
	if criteria.Budget != nil && *criteria.Budget > 0 {
		priceMax = *criteria.Budget
		priceMin = *criteria.Budget * 0.9
	}

	types := []string{string(contractx.PropertyVilla), string(contractx.PropertyApartment)}
	if criteria.PropertyType != "" {
		types = []string{criteria.PropertyType, criteria.PropertyType}
	}

	return []contractx.Property{
		{
			ID:           "sample-1",
			Title:        fmt.Sprintf("Premium %s %s in %s", bhk, titleCase(types[0]), place),
			PropertyType: types[0],
			BHKType:      bhk,
			Locality:     place,
			City:         place,
			PriceMin:     priceMin,
			PriceMax:     priceMax,
			AreaSqft:     1800,
			Status:       statusAvailable,
			Sample:       true,
		},
		{
			ID:           "sample-2",
			Title:        fmt.Sprintf("Garden %s %s near %s", bhk, titleCase(types[1]), place),
			PropertyType: types[1],
			BHKType:      bhk,
			Locality:     place,
			City:         place,
			PriceMin:     priceMin * 0.95,
			PriceMax:     priceMin * 0.95,
			AreaSqft:     1500,
			Status:       statusAvailable,
			Sample:       true,
		},
	}
}

func titleCase(v string) string {
	words := strings.Fields(v)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
