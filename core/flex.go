package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Backends disagree on number encoding: amino JSON quotes int64 values,
// newer tracers emit plain numbers. The decoders below accept both.

// FlexInt decodes a JSON number or numeric string.
func FlexInt(raw json.RawMessage) (int64, bool) {
	s, ok := numberText(raw)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// FlexFloat decodes a JSON number or numeric string.
func FlexFloat(raw json.RawMessage) (float64, bool) {
	s, ok := numberText(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FlexString decodes a JSON string; numbers are returned as their literal text.
func FlexString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return string(raw), true
	}
	return "", false
}

// FlexBool decodes a JSON boolean or a "true"/"false" string.
func FlexBool(raw json.RawMessage) (bool, bool) {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "true", `"true"`:
		return true, true
	case "false", `"false"`:
		return false, true
	}
	return false, false
}

func numberText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	return string(raw), true
}

func flexIntPtr(raw json.RawMessage) *int64 {
	if n, ok := FlexInt(raw); ok {
		return &n
	}
	return nil
}

func flexIndexPtr(raw json.RawMessage) *int {
	if n, ok := FlexInt(raw); ok {
		i := int(n)
		return &i
	}
	return nil
}

// VoteTypeName maps the numeric signed-message types to their names.
func VoteTypeName(raw json.RawMessage) string {
	if n, ok := FlexInt(raw); ok {
		switch n {
		case 1:
			return MessagePrevote
		case 2:
			return MessagePrecommit
		case 32:
			return "proposal"
		}
	}
	s, _ := FlexString(raw)
	switch s {
	case "SIGNED_MSG_TYPE_PREVOTE", "PrevoteType":
		return MessagePrevote
	case "SIGNED_MSG_TYPE_PRECOMMIT", "PrecommitType":
		return MessagePrecommit
	}
	return s
}

// UnmarshalJSON accepts quoted or numeric heights, rounds and vote types.
func (v *Vote) UnmarshalJSON(data []byte) error {
	type plain Vote
	var aux struct {
		plain
		Type           json.RawMessage `json:"type"`
		Height         json.RawMessage `json:"height"`
		Round          json.RawMessage `json:"round"`
		ValidatorIndex json.RawMessage `json:"validatorIndex"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = Vote(aux.plain)
	v.Type = VoteTypeName(aux.Type)
	v.Height = flexIntPtr(aux.Height)
	v.Round = flexIntPtr(aux.Round)
	if n, ok := FlexInt(aux.ValidatorIndex); ok {
		v.ValidatorIndex = int(n)
	}
	return nil
}

func (p *Proposal) UnmarshalJSON(data []byte) error {
	type plain Proposal
	var aux struct {
		plain
		Height   json.RawMessage `json:"height"`
		Round    json.RawMessage `json:"round"`
		PolRound json.RawMessage `json:"polRound"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Proposal(aux.plain)
	p.Height, _ = FlexInt(aux.Height)
	p.Round, _ = FlexInt(aux.Round)
	p.PolRound, _ = FlexInt(aux.PolRound)
	return nil
}

func (p *Part) UnmarshalJSON(data []byte) error {
	type plain Part
	var aux struct {
		plain
		Index json.RawMessage `json:"index"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Part(aux.plain)
	p.Index = flexIndexPtr(aux.Index)
	return nil
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	type plain Proof
	var aux struct {
		plain
		Total json.RawMessage `json:"total"`
		Index json.RawMessage `json:"index"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Proof(aux.plain)
	if n, ok := FlexInt(aux.Total); ok {
		p.Total = int(n)
	}
	p.Index = flexIndexPtr(aux.Index)
	return nil
}

func (h *PartSetHeader) UnmarshalJSON(data []byte) error {
	var aux struct {
		Total json.RawMessage `json:"total"`
		Hash  string          `json:"hash"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	h.Hash = aux.Hash
	if n, ok := FlexInt(aux.Total); ok {
		h.Total = int(n)
	}
	return nil
}
