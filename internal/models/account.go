package models

import "time"

// AccountKind distinguishes the two balance-holding entity types on the
// platform. The kind decides the opening balance an account is seeded with.
type AccountKind string

const (
	AccountIndividual   AccountKind = "individual"
	AccountOrganization AccountKind = "organization"
)

// Opening balances by platform policy.
const (
	OpeningBalanceIndividual   int64 = 1000
	OpeningBalanceOrganization int64 = 5000
)

// OpeningBalance returns the KIC balance a new account of this kind starts
// with. Unknown kinds start at zero.
func (k AccountKind) OpeningBalance() int64 {
	switch k {
	case AccountIndividual:
		return OpeningBalanceIndividual
	case AccountOrganization:
		return OpeningBalanceOrganization
	}
	return 0
}

// Valid reports whether k is one of the known account kinds.
func (k AccountKind) Valid() bool {
	return k == AccountIndividual || k == AccountOrganization
}

// Account is a balance-holding entity, one per user or organization.
// The balance is mutated exclusively through the ledger engine and always
// equals the sum of the account's log entry amounts.
type Account struct {
	ID        string      `json:"account_id"`
	Kind      AccountKind `json:"kind"`
	Balance   int64       `json:"balance"`
	CreatedAt time.Time   `json:"created_at"`
}
