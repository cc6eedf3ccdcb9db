// Package pairing splits normalized events into state points and message
// arrows, matching one-sided send/receive records into latency-bearing edges.
package pairing

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Readm/consensus_trace/core"
)

// Result holds the derived geometry objects of one classification pass.
type Result struct {
	Arrows []*core.Arrow
	Points []*core.StateChangePoint
	// P2PCandidates counts events routed to arrow construction instead of points.
	P2PCandidates int
	// UnmatchedSends counts keyed sends that found no receive at or after them.
	UnmatchedSends int
	// Unkeyed counts send/receive records missing a field of their pairing key.
	Unkeyed int
}

// IsP2P reports whether e is a peer-to-peer candidate: an umbrella P2P type
// or a record carrying both endpoints, both timings and a vote or part.
func IsP2P(e *core.CanvasEvent) bool {
	if e.Type == core.EventP2PVote || e.Type == core.EventP2PBlockPart {
		return true
	}
	return e.SenderPeerID != "" && e.NodeID != "" && e.SentTime != "" && e.ReceivedTime != "" &&
		(e.Vote != nil || e.Part != nil)
}

// Classify derives arrows and points from events. Arrows come in three
// runs: self-contained P2P records, matched vote pairs, matched part pairs,
// each in input order. The output is a pure function of the input.
func Classify(events []core.CanvasEvent) Result {
	var res Result
	consumed := make([]bool, len(events))

	for i := range events {
		e := &events[i]
		if !IsP2P(e) {
			res.Points = append(res.Points, pointOf(e))
			continue
		}
		res.P2PCandidates++
		if a, ok := selfContained(e); ok {
			res.Arrows = append(res.Arrows, a)
			consumed[i] = true
		}
	}

	votes := matchVotes(events, consumed)
	parts := matchParts(events, consumed)
	res.Arrows = append(res.Arrows, votes.arrows...)
	res.Arrows = append(res.Arrows, parts.arrows...)
	res.UnmatchedSends = votes.unmatched + parts.unmatched
	res.Unkeyed = votes.unkeyed + parts.unkeyed
	return res
}

func selfContained(e *core.CanvasEvent) (*core.Arrow, bool) {
	if e.SenderPeerID == "" || e.NodeID == "" || e.SentTime == "" || e.ReceivedTime == "" {
		return nil, false
	}
	sent, err := core.ParseTimestamp(e.SentTime)
	if err != nil {
		return nil, false
	}
	recv, err := core.ParseTimestamp(e.ReceivedTime)
	if err != nil {
		return nil, false
	}
	a := &core.Arrow{
		FromNode:   e.SenderPeerID,
		ToNode:     e.NodeID,
		SendTime:   sent,
		RecvTime:   recv,
		Timestamp:  e.Timestamp,
		SourceType: e.Type,
		SourceNode: e.NodeID,
	}
	switch {
	case e.Vote != nil:
		a.Type = e.Vote.Type
		a.Height = e.Vote.Height
		a.Vote = e.Vote
	case e.Part != nil:
		a.Type = core.MessageBlockPart
		a.Height = e.Height
		a.Part = e.Part
	default:
		return nil, false
	}
	if a.Type == "" || a.Height == nil {
		return nil, false
	}
	// Backends report latency in nanoseconds.
	if e.Latency != nil {
		a.Latency = time.Duration(*e.Latency)
	} else {
		a.Latency = recv.Sub(sent)
	}
	return a, true
}

func pointOf(e *core.CanvasEvent) *core.StateChangePoint {
	return &core.StateChangePoint{
		Type:          e.Type,
		Timestamp:     e.Timestamp,
		Node:          e.NodeID,
		Height:        e.Height,
		Round:         e.Round,
		IsOurTurn:     e.IsOurTurn,
		Duration:      e.Duration,
		Proposal:      e.Proposal,
		Proposer:      e.Proposer,
		CurrentHeight: e.CurrentHeight,
		CurrentRound:  e.CurrentRound,
		CurrentStep:   e.CurrentStep,
		Step:          e.Step,
		NextStep:      e.NextStep,
		NextHeight:    e.NextHeight,
		Hash:          e.Hash,
	}
}

type matchResult struct {
	arrows    []*core.Arrow
	unmatched int
	unkeyed   int
}

// keyFunc builds the pairing key of one side; ok is false when a key field is missing.
type keyFunc func(from, to string, e *core.CanvasEvent) (string, bool)

// receiveIndex maps pairing keys to receives in ascending time order.
type receiveIndex map[string][]*core.CanvasEvent

func buildIndex(receives []*core.CanvasEvent, key keyFunc) (receiveIndex, int) {
	idx := make(receiveIndex)
	unkeyed := 0
	for _, r := range receives {
		k, ok := key(r.SenderID(), r.NodeID, r)
		if !ok {
			unkeyed++
			continue
		}
		idx[k] = append(idx[k], r)
	}
	for _, list := range idx {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Timestamp.Before(list[j].Timestamp)
		})
	}
	return idx, unkeyed
}

// earliestAfter returns the first receive whose timestamp is not before sent.
func (idx receiveIndex) earliestAfter(key string, sent time.Time) *core.CanvasEvent {
	list := idx[key]
	i := sort.Search(len(list), func(i int) bool {
		return !list[i].Timestamp.Before(sent)
	})
	if i == len(list) {
		return nil
	}
	return list[i]
}

func pairArrow(s, r *core.CanvasEvent, from, to string) *core.Arrow {
	return &core.Arrow{
		FromNode:   from,
		ToNode:     to,
		SendTime:   s.Timestamp,
		RecvTime:   r.Timestamp,
		Latency:    r.Timestamp.Sub(s.Timestamp),
		Timestamp:  s.Timestamp,
		SourceType: s.Type,
		SourceNode: s.NodeID,
	}
}

func match(sends, receives []*core.CanvasEvent, key keyFunc, build func(s *core.CanvasEvent, a *core.Arrow)) matchResult {
	idx, unkeyed := buildIndex(receives, key)
	res := matchResult{unkeyed: unkeyed}
	for _, s := range sends {
		from, to := s.NodeID, s.RecipientID()
		k, ok := key(from, to, s)
		if !ok {
			res.unkeyed++
			continue
		}
		r := idx.earliestAfter(k, s.Timestamp)
		if r == nil {
			res.unmatched++
			continue
		}
		a := pairArrow(s, r, from, to)
		build(s, a)
		res.arrows = append(res.arrows, a)
	}
	return res
}

func voteKey(from, to string, e *core.CanvasEvent) (string, bool) {
	v := e.Vote
	if v == nil || from == "" || to == "" || v.Type == "" || v.Height == nil || v.Round == nil || v.BlockID.Hash == "" {
		return "", false
	}
	return strings.Join([]string{
		from, to, v.Type,
		strconv.FormatInt(*v.Height, 10),
		strconv.FormatInt(*v.Round, 10),
		v.BlockID.Hash,
	}, "|"), true
}

func partKey(from, to string, e *core.CanvasEvent) (string, bool) {
	idx, ok := e.Part.PartIndex()
	if !ok || from == "" || to == "" || e.Height == nil {
		return "", false
	}
	return strings.Join([]string{
		from, to,
		strconv.FormatInt(*e.Height, 10),
		strconv.Itoa(idx),
	}, "|"), true
}

func matchVotes(events []core.CanvasEvent, consumed []bool) matchResult {
	var sends, receives []*core.CanvasEvent
	for i := range events {
		e := &events[i]
		if consumed[i] || e.Vote == nil {
			continue
		}
		switch e.Type {
		case core.EventSendVote:
			sends = append(sends, e)
		case core.EventReceiveVote:
			receives = append(receives, e)
		}
	}
	return match(sends, receives, voteKey, func(s *core.CanvasEvent, a *core.Arrow) {
		a.Type = s.Vote.Type
		a.Height = s.Vote.Height
		a.Vote = s.Vote
	})
}

// Block-part records are recognized by type or, for older tracers, by
// which peer field they carry.
func matchParts(events []core.CanvasEvent, consumed []bool) matchResult {
	var sends, receives []*core.CanvasEvent
	for i := range events {
		e := &events[i]
		if consumed[i] || e.Part == nil {
			continue
		}
		if e.Type == core.EventSendBlockPart || e.RecipientPeerID != "" || e.RecipientPeer != "" {
			sends = append(sends, e)
		}
		if e.Type == core.EventReceiveBlockPart || e.SenderPeerID != "" || e.SourcePeerID != "" {
			receives = append(receives, e)
		}
	}
	return match(sends, receives, partKey, func(s *core.CanvasEvent, a *core.Arrow) {
		a.Type = core.MessageBlockPart
		a.Height = s.Height
		a.Part = s.Part
	})
}
