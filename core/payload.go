package core

// BlockID identifies a block by hash and part-set header.
type BlockID struct {
	Hash          string         `json:"hash"`
	PartSetHeader *PartSetHeader `json:"partSetHeader,omitempty"`
}

// PartSetHeader describes how a block was split into parts.
type PartSetHeader struct {
	Total int    `json:"total"`
	Hash  string `json:"hash"`
}

// Vote is a prevote or precommit as logged by a node.
type Vote struct {
	Type             string  `json:"type"`
	Height           *int64  `json:"height,omitempty"`
	Round            *int64  `json:"round,omitempty"`
	BlockID          BlockID `json:"blockId"`
	Timestamp        string  `json:"timestamp,omitempty"`
	ValidatorAddress string  `json:"validatorAddress,omitempty"`
	ValidatorIndex   int     `json:"validatorIndex"`
	Signature        string  `json:"signature,omitempty"`
}

// Proposal is a block proposal observed by a node.
type Proposal struct {
	Height    int64   `json:"height"`
	Round     int64   `json:"round"`
	PolRound  int64   `json:"polRound"`
	BlockID   BlockID `json:"blockId"`
	Timestamp string  `json:"timestamp,omitempty"`
	Signature string  `json:"signature,omitempty"`
}

// Part is one block part gossiped between peers.
type Part struct {
	Index *int   `json:"index,omitempty"`
	Bytes string `json:"bytes,omitempty"`
	Proof *Proof `json:"proof,omitempty"`
}

// Proof is the merkle proof attached to a block part.
type Proof struct {
	Total    int      `json:"total"`
	Index    *int     `json:"index,omitempty"`
	LeafHash string   `json:"leafHash,omitempty"`
	Aunts    []string `json:"aunts,omitempty"`
}

// PartIndex returns the part index, falling back to the proof index.
func (p *Part) PartIndex() (int, bool) {
	if p == nil {
		return 0, false
	}
	if p.Index != nil {
		return *p.Index, true
	}
	if p.Proof != nil && p.Proof.Index != nil {
		return *p.Proof.Index, true
	}
	return 0, false
}
