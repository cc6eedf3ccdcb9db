package core

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// Event type names emitted by the consensus tracer backends.
const (
	EventP2PVote          = "p2pVote"
	EventP2PBlockPart     = "p2pBlockPart"
	EventSendVote         = "sendVote"
	EventReceiveVote      = "receiveVote"
	EventSendBlockPart    = "sendBlockPart"
	EventReceiveBlockPart = "receiveBlockPart"
	EventProposeStep      = "proposeStep"
	EventUnknown          = "unknown"
)

// Message kinds carried by arrows.
const (
	MessagePrevote   = "prevote"
	MessagePrecommit = "precommit"
	MessageBlockPart = "blockPart"
)

// EventKind classifies a CanvasEvent by its resolved type.
type EventKind int

const (
	KindStep EventKind = iota
	KindP2PVote
	KindP2PBlockPart
	KindSendVote
	KindReceiveVote
	KindSendBlockPart
	KindReceiveBlockPart
)

// RawEvent is one record as delivered by the events API. The schema is open:
// fields differ between backend versions, so records are kept as raw JSON.
type RawEvent map[string]json.RawMessage

// CanvasEvent is the normalized form of a RawEvent. Typed fields are decoded
// once; Fields keeps every original field (compacted) so nothing is dropped.
type CanvasEvent struct {
	Type             string
	Timestamp        time.Time
	NodeID           string
	ValidatorAddress string

	Vote     *Vote
	Part     *Part
	Proposal *Proposal

	SenderPeerID    string
	RecipientPeerID string
	SourcePeerID    string
	SourcePeer      string
	RecipientPeer   string
	SentTime        string
	ReceivedTime    string
	Latency         *float64

	Height        *int64
	Round         *int64
	CurrentHeight *int64
	CurrentRound  *int64
	CurrentStep   string
	IsOurTurn     *bool
	Duration      *float64
	Step          string
	NextStep      string
	NextHeight    *int64
	Hash          string
	Proposer      string
	Status        string

	Fields RawEvent
}

// Kind reports the event category implied by Type.
func (e *CanvasEvent) Kind() EventKind {
	switch e.Type {
	case EventP2PVote:
		return KindP2PVote
	case EventP2PBlockPart:
		return KindP2PBlockPart
	case EventSendVote:
		return KindSendVote
	case EventReceiveVote:
		return KindReceiveVote
	case EventSendBlockPart:
		return KindSendBlockPart
	case EventReceiveBlockPart:
		return KindReceiveBlockPart
	default:
		return KindStep
	}
}

// Millis returns the event timestamp in epoch milliseconds.
func (e *CanvasEvent) Millis() float64 {
	return Millis(e.Timestamp)
}

// SenderID resolves the sending peer of a receive-side record, stripping any
// "@host:port" suffix.
func (e *CanvasEvent) SenderID() string {
	for _, v := range []string{e.SenderPeerID, e.SourcePeerID, e.SourcePeer} {
		if v != "" {
			return PeerID(v)
		}
	}
	return ""
}

// RecipientID resolves the receiving peer of a send-side record.
func (e *CanvasEvent) RecipientID() string {
	for _, v := range []string{e.RecipientPeerID, e.RecipientPeer} {
		if v != "" {
			return PeerID(v)
		}
	}
	return ""
}

// NodeIDs lists every node identifier the event references.
func (e *CanvasEvent) NodeIDs() []string {
	ids := make([]string, 0, 4)
	for _, v := range []string{e.NodeID, e.SenderPeerID, e.RecipientPeerID, PeerID(e.SourcePeer), PeerID(e.RecipientPeer)} {
		if v != "" {
			ids = append(ids, v)
		}
	}
	return ids
}

// MarshalJSON writes the original fields with the resolved type and the
// parsed timestamp, so a normalized list can be fed back to the normalizer.
func (e CanvasEvent) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(e.Fields)+2)
	for k, v := range e.Fields {
		fields[k] = v
	}
	typ, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	ts, err := json.Marshal(FormatTimestamp(e.Timestamp))
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	fields["timestamp"] = ts

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NodesOf returns the sorted distinct node identifiers referenced by events.
func NodesOf(events []CanvasEvent) []string {
	set := make(map[string]struct{})
	for i := range events {
		for _, id := range events[i].NodeIDs() {
			set[id] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(set))
	for id := range set {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// TimeRange is the [Min, Max] span of a set of timestamps in epoch milliseconds.
type TimeRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Span returns Max-Min.
func (r TimeRange) Span() float64 {
	return r.Max - r.Min
}

// RangeOf returns the timestamp range of events; ok is false for an empty slice.
func RangeOf(events []CanvasEvent) (TimeRange, bool) {
	if len(events) == 0 {
		return TimeRange{}, false
	}
	r := TimeRange{Min: events[0].Millis(), Max: events[0].Millis()}
	for i := 1; i < len(events); i++ {
		ms := events[i].Millis()
		if ms < r.Min {
			r.Min = ms
		}
		if ms > r.Max {
			r.Max = ms
		}
	}
	return r, true
}
