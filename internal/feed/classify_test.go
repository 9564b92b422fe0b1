package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smartstock.app/internal/domain"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		symbol    string
		market    Market
		ambiguous bool
	}{
		{"RELIANCE.NS", Domestic, false},
		{"TCS.NS", Domestic, false},
		{"tcs.ns", Domestic, false},
		{"  INFY.BO ", Domestic, false},
		{"^NSEI", Domestic, false},
		{"^BSESN", Domestic, false},
		{"nifty", Domestic, false},
		{"SENSEX", Domestic, false},
		{"AAPL", International, false},
		{"msft", International, false},
		{"BRK-B", International, false},
		{"VOD.L", International, false},
		{"^GSPC", International, false},
		{"EURUSD=X", International, false},
		{"BTC-USD", International, false},
		{".NS", International, true},
		{"RELIANCE INDUSTRIES", International, true},
		{"TATAMOTORS", International, true},
	}

	for _, tc := range testCases {
		t.Run(tc.symbol, func(t *testing.T) {
			market, err := Classify(tc.symbol)
			assert.Equal(t, tc.market, market)
			if tc.ambiguous {
				assert.ErrorIs(t, err, domain.ErrRoutingAmbiguity)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClassify_Empty(t *testing.T) {
	_, err := Classify("   ")
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestClassify_StableAcrossSpellings(t *testing.T) {
	spellings := []string{"TCS.NS", "tcs.ns", " TCS.NS", "TCS.NS\t", "Tcs.Ns"}
	want, err := Classify(spellings[0])
	assert.NoError(t, err)
	for _, s := range spellings {
		got, _ := Classify(s)
		assert.Equal(t, want, got, s)
		assert.Equal(t, "TCS.NS", NormalizeSymbol(s))
	}
}
