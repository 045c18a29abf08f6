package persistence

// DistributorState is the durable state of a merkle distributor.
// Roots and bitmap words are 0x-prefixed hex strings.
type DistributorState struct {
	// ID identifies the distributor, usually the contract address
	ID string `json:"id"`

	MerkleRoot string `json:"merkleRoot"`

	// Week increments on every root update
	Week uint64 `json:"week"`

	Frozen bool `json:"frozen"`

	// Deadline is the unix timestamp after which claims are rejected, 0 for none
	Deadline int64 `json:"deadline"`

	// Claimed maps week -> word index -> 256 bit bitmap word
	Claimed map[uint64]map[uint64]string `json:"claimed"`

	UpdatedAt int64 `json:"updatedAt"`
}

// VaultState is the durable state of a vault: its fee policy and share ledger.
// Addresses are hex strings, amounts are 0x-prefixed hex strings.
type VaultState struct {
	ID         string `json:"id"`
	Underlying string `json:"underlying"`
	Strategy   string `json:"strategy"`
	Platform   string `json:"platform"`

	PlatformFeeBps       uint64 `json:"platformFeeBps"`
	CallIncentiveBps     uint64 `json:"callIncentiveBps"`
	WithdrawalPenaltyBps uint64 `json:"withdrawalPenaltyBps"`

	MaxPlatformFeeBps       uint64 `json:"maxPlatformFeeBps"`
	MaxCallIncentiveBps     uint64 `json:"maxCallIncentiveBps"`
	MaxWithdrawalPenaltyBps uint64 `json:"maxWithdrawalPenaltyBps"`

	HarvestPermissioned bool     `json:"harvestPermissioned"`
	Harvesters          []string `json:"harvesters"`

	TotalUnderlying string            `json:"totalUnderlying"`
	TotalSupply     string            `json:"totalSupply"`
	Balances        map[string]string `json:"balances"`

	UpdatedAt int64 `json:"updatedAt"`
}
