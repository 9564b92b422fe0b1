package feed

import (
	"errors"
	"fmt"

	"smartstock.app/internal/domain"
)

// Router is the single place a symbol is mapped to an adapter.
type Router struct {
	adapters map[Market]domain.FeedAdapter
}

func NewRouter(domestic, international domain.FeedAdapter) *Router {
	return &Router{adapters: map[Market]domain.FeedAdapter{
		Domestic:      domestic,
		International: international,
	}}
}

// Route normalizes symbol and selects its adapter. When classification is
// ambiguous the default adapter is still returned along with an error
// wrapping ErrRoutingAmbiguity.
func (r *Router) Route(symbol string) (domain.FeedAdapter, string, error) {
	normalized := NormalizeSymbol(symbol)
	market, err := Classify(normalized)
	if err != nil && !errors.Is(err, domain.ErrRoutingAmbiguity) {
		return nil, "", err
	}

	adapter, ok := r.adapters[market]
	if !ok || adapter == nil {
		return nil, "", fmt.Errorf("feed: no adapter for %s market", market)
	}
	return adapter, normalized, err
}
