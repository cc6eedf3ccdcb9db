package pairing

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/Readm/consensus_trace/core"
)

// Cache memoizes Classify on the content fingerprint of its input, so
// viewport, filter and pointer changes reuse the previous arrows and points.
type Cache struct {
	mu     sync.Mutex
	key    uint64
	valid  bool
	result Result
	hits   uint64
	misses uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Classify returns the cached result when events are unchanged.
func (c *Cache) Classify(events []core.CanvasEvent) Result {
	fp := Fingerprint(events)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.key == fp {
		c.hits++
		return c.result
	}
	c.misses++
	c.result = Classify(events)
	c.key = fp
	c.valid = true
	return c.result
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Fingerprint hashes every field of events that classification can read:
// the typed fields decoded by the normalizer as well as the raw field map.
func Fingerprint(events []core.CanvasEvent) uint64 {
	h := fingerprinter{d: xxhash.New()}
	h.u64(uint64(len(events)))
	keys := make([]string, 0, 32)
	for i := range events {
		e := &events[i]
		h.str(e.Type)
		h.u64(uint64(e.Timestamp.UnixNano()))
		for _, v := range []string{
			e.NodeID, e.ValidatorAddress,
			e.SenderPeerID, e.RecipientPeerID, e.SourcePeerID, e.SourcePeer, e.RecipientPeer,
			e.SentTime, e.ReceivedTime,
			e.CurrentStep, e.Step, e.NextStep, e.Hash, e.Proposer, e.Status,
		} {
			h.str(v)
		}
		for _, v := range []*int64{e.Height, e.Round, e.CurrentHeight, e.CurrentRound, e.NextHeight} {
			h.i64(v)
		}
		h.f64(e.Latency)
		h.f64(e.Duration)
		h.flag(e.IsOurTurn)
		h.vote(e.Vote)
		h.part(e.Part)
		h.proposal(e.Proposal)

		keys = keys[:0]
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		h.u64(uint64(len(keys)))
		for _, k := range keys {
			h.str(k)
			h.bytes(e.Fields[k])
		}
	}
	return h.d.Sum64()
}

// fingerprinter writes length-prefixed values so adjacent fields cannot
// run into each other, and marks absent pointers apart from zero values.
type fingerprinter struct {
	d   *xxhash.Digest
	buf [8]byte
}

func (h *fingerprinter) u64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	h.d.Write(h.buf[:])
}

func (h *fingerprinter) bytes(b []byte) {
	h.u64(uint64(len(b)))
	h.d.Write(b)
}

func (h *fingerprinter) str(s string) {
	h.u64(uint64(len(s)))
	h.d.WriteString(s)
}

func (h *fingerprinter) present(ok bool) bool {
	if ok {
		h.d.Write([]byte{1})
	} else {
		h.d.Write([]byte{0})
	}
	return ok
}

func (h *fingerprinter) i64(v *int64) {
	if h.present(v != nil) {
		h.u64(uint64(*v))
	}
}

func (h *fingerprinter) index(v *int) {
	if h.present(v != nil) {
		h.u64(uint64(*v))
	}
}

func (h *fingerprinter) f64(v *float64) {
	if h.present(v != nil) {
		h.u64(math.Float64bits(*v))
	}
}

func (h *fingerprinter) flag(v *bool) {
	if h.present(v != nil) {
		h.present(*v)
	}
}

func (h *fingerprinter) blockID(b core.BlockID) {
	h.str(b.Hash)
	if h.present(b.PartSetHeader != nil) {
		h.u64(uint64(b.PartSetHeader.Total))
		h.str(b.PartSetHeader.Hash)
	}
}

func (h *fingerprinter) vote(v *core.Vote) {
	if !h.present(v != nil) {
		return
	}
	h.str(v.Type)
	h.i64(v.Height)
	h.i64(v.Round)
	h.blockID(v.BlockID)
	h.str(v.Timestamp)
	h.str(v.ValidatorAddress)
	h.u64(uint64(v.ValidatorIndex))
	h.str(v.Signature)
}

func (h *fingerprinter) part(p *core.Part) {
	if !h.present(p != nil) {
		return
	}
	h.index(p.Index)
	h.str(p.Bytes)
	if h.present(p.Proof != nil) {
		h.u64(uint64(p.Proof.Total))
		h.index(p.Proof.Index)
		h.str(p.Proof.LeafHash)
		h.u64(uint64(len(p.Proof.Aunts)))
		for _, a := range p.Proof.Aunts {
			h.str(a)
		}
	}
}

func (h *fingerprinter) proposal(p *core.Proposal) {
	if !h.present(p != nil) {
		return
	}
	h.u64(uint64(p.Height))
	h.u64(uint64(p.Round))
	h.u64(uint64(p.PolRound))
	h.blockID(p.BlockID)
	h.str(p.Timestamp)
	h.str(p.Signature)
}
