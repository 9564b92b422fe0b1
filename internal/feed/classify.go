package feed

import (
	"fmt"
	"regexp"
	"strings"

	"smartstock.app/internal/domain"
)

// Market selects which upstream adapter serves a symbol.
type Market string

const (
	Domestic      Market = "domestic"
	International Market = "international"
)

var domesticSuffixes = []string{".NS", ".BO"}

var domesticIndices = map[string]struct{}{
	"^NSEI":     {},
	"^BSESN":    {},
	"^NSEBANK":  {},
	"^CNXIT":    {},
	"^NSEIT":    {},
	"NIFTY":     {},
	"NIFTY50":   {},
	"BANKNIFTY": {},
	"SENSEX":    {},
}

// Tickers, foreign-exchange suffixes (VOD.L), index carets (^GSPC),
// currency pairs (EURUSD=X) and crypto pairs (BTC-USD).
var internationalTicker = regexp.MustCompile(`^(\^[A-Z0-9]{2,10}|[A-Z0-9]{1,6}([.-][A-Z]{1,4})?(=X|=F)?)$`)

// NormalizeSymbol is applied before every classification and every registry
// lookup so that " tcs.ns" and "TCS.NS" are the same subscription.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Classify routes a symbol to a market. It returns ErrInvalidSymbol for an
// empty symbol. A symbol that is neither domestic nor shaped like an
// international ticker is routed to International and reported with
// ErrRoutingAmbiguity so the caller can log it.
func Classify(symbol string) (Market, error) {
	s := NormalizeSymbol(symbol)
	if s == "" {
		return "", domain.ErrInvalidSymbol
	}

	for _, suffix := range domesticSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return Domestic, nil
		}
	}
	if _, ok := domesticIndices[s]; ok {
		return Domestic, nil
	}

	if !internationalTicker.MatchString(s) {
		return International, fmt.Errorf("%w: %q", domain.ErrRoutingAmbiguity, s)
	}
	return International, nil
}
