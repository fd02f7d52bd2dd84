package tokenregistry

import "github.com/ethereum/go-ethereum/common"

// Token is the metadata of a token held in the ledger. Amounts are always in base units;
// Decimals only scales them for display.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals int32          `json:"decimals"`
}
