package models

// Token is cached fungible asset metadata, fetched once from the chain and
// immutable thereafter (decimals cannot change on a deployed asset).
type Token struct {
	Address  string `json:"address" db:"address"`
	Symbol   string `json:"symbol" db:"symbol"`
	Name     string `json:"name" db:"name"`
	Decimals int    `json:"decimals" db:"decimals"`
}
