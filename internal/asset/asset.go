// Package asset holds the closed set of pegged-asset tickers, the fixed
// grading iteration order, the block reward schedule, and the network
// constants (chain ids, burn sink addresses) that the rest of the node is
// parameterized on.
package asset

// Ticker identifies one member of the closed asset set A = {PNT} ∪ CURRENCY
// ∪ COMMODITY ∪ CRYPTO.
type Ticker string

// PNT is the native reward token, credited by the block-reward schedule.
const PNT Ticker = "PNT"

// Currency, commodity and crypto tickers mirror the reference pegnet
// constants (alchemy/consts.py ASSET_GRADING_ORDER) exactly: 14 currencies,
// 4 commodities, 13 cryptos, plus PNT — 32 total.
var (
	currencyAssets = []Ticker{"USD", "EUR", "JPY", "GBP", "CAD", "CHF", "INR", "SGD", "CNY", "HKD", "KRW", "BRL", "PHP", "MXN"}
	commodityAssets = []Ticker{"XAU", "XAG", "XPD", "XPT"}
	cryptoAssets = []Ticker{"XBT", "ETH", "LTC", "RVN", "XBC", "FCT", "BNB", "XLM", "ADA", "XMR", "DASH", "ZEC", "DCR"}
)

// GradingOrder is the single fixed iteration order every per-asset reduction
// feeding grading MUST use. Re-ordering this slice changes grade values —
// see spec §9 "Ordered iteration over a fixed key set".
var GradingOrder = buildGradingOrder()

func buildGradingOrder() []Ticker {
	order := make([]Ticker, 0, 1+len(currencyAssets)+len(commodityAssets)+len(cryptoAssets))
	order = append(order, PNT)
	order = append(order, currencyAssets...)
	order = append(order, commodityAssets...)
	order = append(order, cryptoAssets...)
	return order
}

// All reports whether t is a member of the closed asset set A.
func All(t Ticker) bool {
	for _, a := range GradingOrder {
		if a == t {
			return true
		}
	}
	return false
}

// Pegged reports whether t is a pegged asset (everything but PNT).
func Pegged(t Ticker) bool {
	return t != PNT && All(t)
}

// Count is |A|, the size of the closed asset set.
const Count = 32

func init() {
	if len(GradingOrder) != Count {
		panic("asset: grading order does not contain the expected 32 tickers")
	}
}

// BlockRewards is the PNT reward schedule, indexed by grading place
// (0 = block winner). Amounts are in PNT's 10^-8 fixed-point unit.
var BlockRewards = [10]int64{
	800_00000000,
	600_00000000,
	450_00000000,
	450_00000000,
	450_00000000,
	450_00000000,
	450_00000000,
	450_00000000,
	450_00000000,
	450_00000000,
}

// Network selects which constant set (chain ids, burn address) a node
// instance runs against.
type Network int

const (
	MainNet Network = iota
	TestNet
)

// Constants holds the per-network configuration fixed at compile time:
// the two entry-chain ids and the burn sink address.
type Constants struct {
	Network            Network
	OPRChainID         string
	TransactionsChainID string
	BurnAddress        string
}

// mainnet and testnet constants. The OPR/transactions chain ids and the
// mainnet burn address are the live pegnet values (alchemy/consts.py); the
// testnet burn address matches the real pegnet testnet deployment. The
// testnet chain-id pair is not published in the distilled spec or in
// original_source (which only ever ran against mainnet), so SPEC_FULL pins a
// structurally-valid placeholder pair here, clearly called out as such.
var (
	Mainnet = Constants{
		Network:             MainNet,
		OPRChainID:          "a642a8674f46696cc47fdb6b65f9c87b2a19c5ea8123b3d2f0c13b6f33a9d5ef",
		TransactionsChainID: "77d4651d899bdff0a8e15515ea49552a530b4657bc198414f555aabcde87e5b",
		BurnAddress:         "EC2BURNFCT2PEGNETooo1oooo1oooo1oooo1oooo1oooo19wthin",
	}

	// Testnet placeholder chain ids — 32-byte hex strings, structurally
	// valid, but not a published pegnet testnet deployment.
	Testnet = Constants{
		Network:             TestNet,
		OPRChainID:          "0000000000000000000000000000000000000000000000000070656774657374",
		TransactionsChainID: "0000000000000000000000000000000000000000000000000074786e74657374",
		BurnAddress:         "EC2BURNFCT2TESTxoooo1oooo1oooo1oooo1oooo1oooo1EoyM6d",
	}
)

// ForNetwork resolves the constant set for a network selector.
func ForNetwork(n Network) Constants {
	if n == TestNet {
		return Testnet
	}
	return Mainnet
}
