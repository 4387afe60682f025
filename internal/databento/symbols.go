package databento

import (
	"fmt"
	"sort"
	"time"
)

const (
	// CME/CBOT/NYMEX/COMEX futures
	FuturesDataset = "GLBX.MDP3"
	// NASDAQ stocks
	StocksDataset = "XNAS.ITCH"
)

// StockPrefix marks stock symbols in the database so they never collide
// with futures roots.
const StockPrefix = "STK"

// FuturesRoots maps Databento root symbols to database symbols. They
// disagree for a handful of legacy floor symbols.
var FuturesRoots = map[string]string{
	// indices
	"ES": "ES",
	"NQ": "NQ",
	// energy
	"CL": "CL",
	"NG": "NG",
	// metals
	"GC": "GC",
	"SI": "SI",
	"HG": "HG",
	// grains
	"ZC": "ZC",
	"ZS": "ZS",
	"ZW": "ZW",
	"ZM": "SM",
	"ZL": "BO",
	// meats
	"LE": "LC",
	"HE": "LH",
	"GF": "FC",
	// currencies
	"6E": "6E",
	"6J": "6J",
}

// StockSymbols go directly to continuous_prices, no roll needed.
var StockSymbols = []string{
	// major index ETFs
	"SPY", "QQQ", "IWM", "DIA",
	// mega caps
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK.B",
	// tech
	"AMD", "INTC", "CRM", "ORCL", "ADBE", "CSCO", "AVGO", "TXN",
	// finance
	"JPM", "BAC", "WFC", "GS", "MS", "V", "MA", "AXP",
	// healthcare
	"UNH", "JNJ", "PFE", "MRK", "ABBV", "LLY", "TMO", "ABT",
	// consumer
	"WMT", "HD", "MCD", "NKE", "SBUX", "TGT", "COST", "LOW",
	// energy
	"XOM", "CVX", "COP", "SLB", "EOG", "MPC", "PSX", "VLO",
	// industrials
	"CAT", "DE", "BA", "GE", "HON", "UPS", "RTX", "LMT",
}

// FuturesRootSymbols returns the Databento roots in a stable order.
func FuturesRootSymbols() []string {
	roots := make([]string, 0, len(FuturesRoots))
	for root := range FuturesRoots {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

// FuturesDBSymbols returns the deduplicated database symbols in a stable
// order.
func FuturesDBSymbols() []string {
	seen := map[string]bool{}
	var symbols []string
	for _, symbol := range FuturesRoots {
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// F(Jan) G(Feb) H(Mar) J(Apr) K(May) M(Jun) N(Jul) Q(Aug) U(Sep) V(Oct) X(Nov) Z(Dec)
var monthCodes = []byte{'F', 'G', 'H', 'J', 'K', 'M', 'N', 'Q', 'U', 'V', 'X', 'Z'}

// ActiveContracts generates the front four contract symbols for a root as
// of the given date, e.g. ESZ24, rolling the 2-digit year across December.
func ActiveContracts(root string, asOf time.Time) []string {
	currentMonth := int(asOf.Month()) - 1
	currentYear := asOf.Year() % 100

	contracts := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		monthIdx := (currentMonth + i) % 12
		year := currentYear
		if currentMonth+i >= 12 {
			year = (currentYear + 1) % 100
		}
		contracts = append(contracts, fmt.Sprintf("%s%c%02d", root, monthCodes[monthIdx], year))
	}
	return contracts
}
