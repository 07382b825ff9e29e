// Package universe defines the tradeable universe: the scan watchlist, the
// static ticker-to-sector table used for concentration checks, and the
// defensive core symbols excluded from active position counting.
package universe

// SectorUnknown is returned for tickers outside the sector table. Unknown
// tickers are still concentration-checked as their own bucket.
const SectorUnknown = "Unknown"

// sectorMap maps tickers to their industry grouping. Static by design: the
// universe is curated, and sector membership changes far too slowly to
// justify an external lookup on the trading path.
var sectorMap = map[string]string{
	// Technology
	"AAPL":  "Technology",
	"MSFT":  "Technology",
	"GOOGL": "Technology",
	"META":  "Technology",
	"NVDA":  "Technology",
	"AMD":   "Technology",
	"AVGO":  "Technology",
	"NFLX":  "Technology",

	// Finance
	"JPM": "Finance",
	"BAC": "Finance",
	"WFC": "Finance",
	"GS":  "Finance",
	"MS":  "Finance",

	// Energy
	"XOM": "Energy",
	"CVX": "Energy",
	"COP": "Energy",

	// Healthcare
	"LLY": "Healthcare",
	"JNJ": "Healthcare",
	"PFE": "Healthcare",
	"UNH": "Healthcare",

	// Consumer
	"TSLA": "Consumer",
	"AMZN": "Consumer",
	"KO":   "Consumer",
	"PEP":  "Consumer",
	"MCD":  "Consumer",

	// ETFs
	"VTI": "Broad Market",
	"VGK": "International",
	"GLD": "Commodities",
	"SPY": "Broad Market",
	"QQQ": "Technology",
}

// SectorFor returns the sector for a ticker, or SectorUnknown
func SectorFor(ticker string) string {
	if sector, ok := sectorMap[ticker]; ok {
		return sector
	}
	return SectorUnknown
}

// defensiveSymbols are the buy-and-hold core ETFs. They never count toward
// the active position cap and are never exit-checked.
var defensiveSymbols = map[string]bool{
	"VTI": true,
	"VGK": true,
	"GLD": true,
}

// IsDefensive reports whether a symbol belongs to the defensive core
func IsDefensive(symbol string) bool {
	return defensiveSymbols[symbol]
}

// DefensiveSymbols returns the defensive core symbols
func DefensiveSymbols() []string {
	symbols := make([]string, 0, len(defensiveSymbols))
	for s := range defensiveSymbols {
		symbols = append(symbols, s)
	}
	return symbols
}

// Watchlist returns the momentum scan universe, diversified across sectors
// so the scanner surfaces candidates the sector filter can actually admit.
func Watchlist() []string {
	return []string{
		"AAPL", "MSFT", "NVDA", "GOOGL", "META", // Tech
		"TSLA", "AMD", "NFLX", "AVGO", // Growth
		"JPM", "BAC", // Finance
		"XOM", "CVX", // Energy
		"LLY", "JNJ", // Healthcare
	}
}
