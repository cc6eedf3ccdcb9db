package pairing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Readm/consensus_trace/core"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func i64(v int64) *int64 { return &v }
func idx(v int) *int     { return &v }

func vote(typ string, height, round int64, hash string) *core.Vote {
	return &core.Vote{Type: typ, Height: i64(height), Round: i64(round), BlockID: core.BlockID{Hash: hash}}
}

func sendVote(from, to string, at time.Duration, v *core.Vote) core.CanvasEvent {
	return core.CanvasEvent{Type: core.EventSendVote, Timestamp: base.Add(at), NodeID: from, RecipientPeerID: to, Vote: v}
}

func receiveVote(at, from string, ts time.Duration, v *core.Vote) core.CanvasEvent {
	return core.CanvasEvent{Type: core.EventReceiveVote, Timestamp: base.Add(ts), NodeID: at, SenderPeerID: from, Vote: v}
}

func TestMatchedVoteLatency(t *testing.T) {
	v := vote("prevote", 10, 0, "abc")
	res := Classify([]core.CanvasEvent{
		sendVote("A", "B", 0, v),
		receiveVote("B", "A", 12*time.Millisecond, v),
	})
	if len(res.Arrows) != 1 {
		t.Fatalf("expected 1 arrow, got %d", len(res.Arrows))
	}
	a := res.Arrows[0]
	if a.FromNode != "A" || a.ToNode != "B" {
		t.Fatalf("unexpected endpoints %s -> %s", a.FromNode, a.ToNode)
	}
	if a.Latency != 12*time.Millisecond || a.LatencyMillis() != 12 {
		t.Fatalf("expected 12ms latency, got %v", a.Latency)
	}
	if a.Type != "prevote" || a.Height == nil || *a.Height != 10 {
		t.Fatalf("unexpected arrow %+v", a)
	}
	if a.SourceType != core.EventSendVote || a.SourceNode != "A" {
		t.Fatalf("arrow should reference its send record, got %s/%s", a.SourceType, a.SourceNode)
	}
}

func TestUnmatchedSendProducesNoArrow(t *testing.T) {
	res := Classify([]core.CanvasEvent{sendVote("A", "B", 0, vote("prevote", 10, 0, "abc"))})
	if len(res.Arrows) != 0 {
		t.Fatalf("expected no arrows, got %d", len(res.Arrows))
	}
	if res.UnmatchedSends != 1 {
		t.Fatalf("expected 1 unmatched send, got %d", res.UnmatchedSends)
	}
}

func TestMatchIgnoresEarlierReceive(t *testing.T) {
	v := vote("precommit", 7, 1, "h")
	t0 := 100 * time.Millisecond
	res := Classify([]core.CanvasEvent{
		receiveVote("B", "A", t0+5*time.Millisecond, v),
		sendVote("A", "B", t0, v),
		receiveVote("B", "A", t0-5*time.Millisecond, v),
	})
	if len(res.Arrows) != 1 {
		t.Fatalf("expected 1 arrow, got %d", len(res.Arrows))
	}
	if want := base.Add(t0 + 5*time.Millisecond); !res.Arrows[0].RecvTime.Equal(want) {
		t.Fatalf("recvTime = %v, want %v", res.Arrows[0].RecvTime, want)
	}
}

func TestMatchAcceptsSimultaneousReceive(t *testing.T) {
	v := vote("prevote", 1, 0, "h")
	res := Classify([]core.CanvasEvent{sendVote("A", "B", 0, v), receiveVote("B", "A", 0, v)})
	if len(res.Arrows) != 1 || res.Arrows[0].Latency != 0 {
		t.Fatalf("expected one zero-latency arrow, got %+v", res.Arrows)
	}
}

func TestKeyMismatchDoesNotPair(t *testing.T) {
	res := Classify([]core.CanvasEvent{
		sendVote("A", "B", 0, vote("prevote", 10, 0, "abc")),
		receiveVote("B", "A", time.Millisecond, vote("prevote", 10, 1, "abc")),
		receiveVote("B", "A", time.Millisecond, vote("precommit", 10, 0, "abc")),
		receiveVote("C", "A", time.Millisecond, vote("prevote", 10, 0, "abc")),
	})
	if len(res.Arrows) != 0 {
		t.Fatalf("expected no arrows, got %d", len(res.Arrows))
	}
}

func TestLegacyPeerStringsAreStripped(t *testing.T) {
	v := vote("prevote", 3, 0, "h")
	send := sendVote("A", "", 0, v)
	send.RecipientPeer = "B@10.0.0.2:26656"
	recv := receiveVote("B", "", 2*time.Millisecond, v)
	recv.SourcePeer = "A@10.0.0.1:26656"
	res := Classify([]core.CanvasEvent{send, recv})
	if len(res.Arrows) != 1 || res.Arrows[0].ToNode != "B" {
		t.Fatalf("expected arrow to B, got %+v", res.Arrows)
	}
}

func TestMissingBlockHashIsUnkeyed(t *testing.T) {
	v := vote("prevote", 3, 0, "")
	res := Classify([]core.CanvasEvent{sendVote("A", "B", 0, v), receiveVote("B", "A", time.Millisecond, v)})
	if len(res.Arrows) != 0 {
		t.Fatalf("expected no arrows")
	}
	if res.Unkeyed != 2 {
		t.Fatalf("expected 2 unkeyed records, got %d", res.Unkeyed)
	}
	if len(res.Points) != 2 {
		t.Fatalf("send/receive records are still state points, got %d", len(res.Points))
	}
}

func TestBlockPartPairingUsesProofIndex(t *testing.T) {
	send := core.CanvasEvent{
		Type: core.EventSendBlockPart, Timestamp: base, NodeID: "A", RecipientPeerID: "B",
		Height: i64(5), Part: &core.Part{Index: idx(2)},
	}
	recv := core.CanvasEvent{
		Type: core.EventReceiveBlockPart, Timestamp: base.Add(3 * time.Millisecond), NodeID: "B", SourcePeerID: "A",
		Height: i64(5), Part: &core.Part{Proof: &core.Proof{Index: idx(2)}},
	}
	res := Classify([]core.CanvasEvent{send, recv})
	if len(res.Arrows) != 1 {
		t.Fatalf("expected 1 arrow, got %d", len(res.Arrows))
	}
	a := res.Arrows[0]
	if a.Type != core.MessageBlockPart || *a.Height != 5 || a.Latency != 3*time.Millisecond {
		t.Fatalf("unexpected arrow %+v", a)
	}
}

func TestSelfContainedRecord(t *testing.T) {
	latency := 4_500_000.0
	e := core.CanvasEvent{
		Type: core.EventP2PVote, Timestamp: base, NodeID: "B", SenderPeerID: "A",
		SentTime: "2025-03-01T10:00:00.000Z", ReceivedTime: "2025-03-01T10:00:00.005Z",
		Latency: &latency, Vote: vote("precommit", 9, 0, "h"),
	}
	res := Classify([]core.CanvasEvent{e})
	if res.P2PCandidates != 1 || len(res.Points) != 0 {
		t.Fatalf("expected a P2P candidate, got %+v", res)
	}
	if len(res.Arrows) != 1 {
		t.Fatalf("expected 1 arrow, got %d", len(res.Arrows))
	}
	a := res.Arrows[0]
	if a.Type != "precommit" || a.FromNode != "A" || a.ToNode != "B" {
		t.Fatalf("unexpected arrow %+v", a)
	}
	if a.LatencyMillis() != 4.5 {
		t.Fatalf("latency should be read as nanoseconds, got %v", a.Latency)
	}
	if a.RecvTime.Sub(a.SendTime) != 5*time.Millisecond {
		t.Fatalf("unexpected timing %v -> %v", a.SendTime, a.RecvTime)
	}
}

func TestUmbrellaTypeWithoutTimingIsCandidateOnly(t *testing.T) {
	e := core.CanvasEvent{Type: core.EventP2PBlockPart, Timestamp: base, NodeID: "B", Part: &core.Part{Index: idx(0)}}
	res := Classify([]core.CanvasEvent{e})
	if res.P2PCandidates != 1 || len(res.Points) != 0 || len(res.Arrows) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClassificationIsComplete(t *testing.T) {
	v := vote("prevote", 1, 0, "h")
	events := []core.CanvasEvent{
		{Type: "enteringNewRound", Timestamp: base, NodeID: "A"},
		{Type: core.EventProposeStep, Timestamp: base, NodeID: "A"},
		sendVote("A", "B", 0, v),
		receiveVote("B", "A", time.Millisecond, v),
		{Type: core.EventP2PVote, Timestamp: base, NodeID: "B", SenderPeerID: "A", SentTime: "2025-03-01T10:00:00Z", ReceivedTime: "2025-03-01T10:00:00.001Z", Vote: v},
		{Type: "vote", Timestamp: base, NodeID: "C", SenderPeerID: "A", SentTime: "2025-03-01T10:00:00Z", ReceivedTime: "2025-03-01T10:00:00.001Z", Vote: v},
	}
	res := Classify(events)
	if len(res.Points)+res.P2PCandidates != len(events) {
		t.Fatalf("points %d + candidates %d != %d events", len(res.Points), res.P2PCandidates, len(events))
	}
	if len(res.Arrows) != 3 {
		t.Fatalf("expected 3 arrows, got %d", len(res.Arrows))
	}
	if res.Arrows[2].SourceType != core.EventSendVote {
		t.Fatalf("matched pairs should follow self-contained arrows")
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	v1 := vote("prevote", 1, 0, "h")
	v2 := vote("precommit", 1, 0, "h")
	events := []core.CanvasEvent{
		sendVote("A", "B", 0, v1),
		sendVote("A", "C", 0, v1),
		sendVote("B", "A", time.Millisecond, v2),
		receiveVote("C", "A", 3*time.Millisecond, v1),
		receiveVote("B", "A", 2*time.Millisecond, v1),
		receiveVote("B", "A", 2*time.Millisecond, v1),
		receiveVote("A", "B", 4*time.Millisecond, v2),
	}
	first, err := json.Marshal(Classify(events).Arrows)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := json.Marshal(Classify(events).Arrows)
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
}

func TestCacheReusesResult(t *testing.T) {
	v := vote("prevote", 1, 0, "h")
	events := []core.CanvasEvent{sendVote("A", "B", 0, v), receiveVote("B", "A", time.Millisecond, v)}
	c := NewCache()
	first := c.Classify(events)
	second := c.Classify(events)
	if first.Arrows[0] != second.Arrows[0] {
		t.Fatalf("expected cached arrow pointers to be reused")
	}
	events = append(events, core.CanvasEvent{Type: "x", Timestamp: base, NodeID: "A"})
	third := c.Classify(events)
	if len(third.Points) != 3 {
		t.Fatalf("cache did not notice new event, points=%d", len(third.Points))
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 2 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}
}

func TestCacheSeesTypedFieldChanges(t *testing.T) {
	matched := []core.CanvasEvent{
		sendVote("A", "B", 0, vote("prevote", 10, 0, "h")),
		receiveVote("B", "A", time.Millisecond, vote("prevote", 10, 0, "h")),
	}
	moved := []core.CanvasEvent{
		sendVote("A", "B", 0, vote("prevote", 10, 0, "h")),
		receiveVote("B", "A", time.Millisecond, vote("prevote", 11, 0, "h")),
	}
	if Fingerprint(matched) == Fingerprint(moved) {
		t.Fatalf("lists differing in vote height share a fingerprint")
	}

	c := NewCache()
	if got := len(c.Classify(matched).Arrows); got != 1 {
		t.Fatalf("expected 1 arrow, got %d", got)
	}
	fresh := Classify(moved)
	cached := c.Classify(moved)
	if len(fresh.Arrows) != 0 || len(cached.Arrows) != len(fresh.Arrows) || cached.UnmatchedSends != fresh.UnmatchedSends {
		t.Fatalf("cached result diverges: fresh=%d cached=%d arrows", len(fresh.Arrows), len(cached.Arrows))
	}
	if _, misses := c.Stats(); misses != 2 {
		t.Fatalf("expected a miss for the changed list, got %d misses", misses)
	}

	withLatency := append([]core.CanvasEvent(nil), matched...)
	lat := 3.0
	withLatency[1].Latency = &lat
	if Fingerprint(withLatency) == Fingerprint(matched) {
		t.Fatalf("latency change not reflected in fingerprint")
	}
}
