package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Readm/consensus_trace/core"
)

var errNoTimestamp = errors.New("missing timestamp")

// typeKeys lists the discriminator fields in precedence order.
var typeKeys = []string{"eventType", "type"}

// NormalizeOne converts a single raw JSON record.
func NormalizeOne(rec json.RawMessage) (core.CanvasEvent, error) {
	var raw core.RawEvent
	if err := json.Unmarshal(rec, &raw); err != nil {
		return core.CanvasEvent{}, fmt.Errorf("decode record: %w", err)
	}
	if raw == nil {
		return core.CanvasEvent{}, errors.New("null record")
	}
	return fromRaw(raw)
}

// ResolveType applies eventType > type > "unknown".
func ResolveType(raw core.RawEvent) string {
	for _, key := range typeKeys {
		if s, ok := core.FlexString(raw[key]); ok && s != "" {
			return s
		}
	}
	return core.EventUnknown
}

func fromRaw(raw core.RawEvent) (core.CanvasEvent, error) {
	ts, err := timestampOf(raw["timestamp"])
	if err != nil {
		return core.CanvasEvent{}, err
	}
	ev := core.CanvasEvent{
		Type:      ResolveType(raw),
		Timestamp: ts,
		Fields:    make(core.RawEvent, len(raw)+2),
	}
	for k, v := range raw {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return core.CanvasEvent{}, fmt.Errorf("field %q: %w", k, err)
		}
		ev.Fields[k] = buf.Bytes()
	}
	typ, _ := json.Marshal(ev.Type)
	stamp, _ := json.Marshal(core.FormatTimestamp(ts))
	ev.Fields["type"] = typ
	ev.Fields["timestamp"] = stamp

	str := func(key string) string {
		s, _ := core.FlexString(raw[key])
		return s
	}
	ev.NodeID = str("nodeId")
	ev.ValidatorAddress = str("validatorAddress")
	ev.SenderPeerID = str("senderPeerId")
	ev.RecipientPeerID = str("recipientPeerId")
	ev.SourcePeerID = str("sourcePeerId")
	ev.SourcePeer = str("sourcePeer")
	ev.RecipientPeer = str("recipientPeer")
	ev.SentTime = str("sentTime")
	ev.ReceivedTime = str("receivedTime")
	ev.CurrentStep = str("currentStep")
	ev.Step = str("step")
	ev.NextStep = str("nextStep")
	ev.Hash = str("hash")
	ev.Proposer = str("proposer")
	ev.Status = str("status")

	ev.Latency = floatPtr(raw["latency"])
	ev.Duration = floatPtr(raw["duration"])
	ev.Height = intPtr(raw["height"])
	ev.Round = intPtr(raw["round"])
	ev.CurrentHeight = intPtr(raw["currentHeight"])
	ev.CurrentRound = intPtr(raw["currentRound"])
	ev.NextHeight = intPtr(raw["nextHeight"])
	if b, ok := core.FlexBool(raw["isOurTurn"]); ok {
		ev.IsOurTurn = &b
	}

	if present(raw["vote"]) {
		ev.Vote = new(core.Vote)
		if err := json.Unmarshal(raw["vote"], ev.Vote); err != nil {
			return core.CanvasEvent{}, fmt.Errorf("vote payload: %w", err)
		}
	}
	if present(raw["part"]) {
		ev.Part = new(core.Part)
		if err := json.Unmarshal(raw["part"], ev.Part); err != nil {
			return core.CanvasEvent{}, fmt.Errorf("part payload: %w", err)
		}
	}
	if present(raw["proposal"]) {
		ev.Proposal = new(core.Proposal)
		if err := json.Unmarshal(raw["proposal"], ev.Proposal); err != nil {
			return core.CanvasEvent{}, fmt.Errorf("proposal payload: %w", err)
		}
	}
	return ev, nil
}

// timestampOf accepts ISO-8601 strings and epoch milliseconds.
func timestampOf(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if !present(raw) {
		return time.Time{}, errNoTimestamp
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		return core.ParseTimestamp(s)
	}
	ms, ok := core.FlexFloat(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp %s is not a string or number", raw)
	}
	return core.FromMillis(ms), nil
}

// present reports whether raw holds a usable (non-null, non-empty) value.
func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", `""`:
		return false
	}
	return true
}

func floatPtr(raw json.RawMessage) *float64 {
	if f, ok := core.FlexFloat(raw); ok {
		return &f
	}
	return nil
}

func intPtr(raw json.RawMessage) *int64 {
	if n, ok := core.FlexInt(raw); ok {
		return &n
	}
	return nil
}
