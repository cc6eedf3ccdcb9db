package fetch

import (
	"context"
	"sync"

	"github.com/Readm/consensus_trace/ingest"
)

// Request identifies one events load.
type Request struct {
	SimulationID string
	Query        Query
}

// Batch is a fetched and normalized page, tagged with the load sequence
// number it belongs to.
type Batch struct {
	Seq      uint64
	Request  Request
	Page     *Page
	Result   ingest.Result
	Total    int
	Large    bool
	Segments []Segment
}

// Loader runs fetch-and-normalize loads where each new load supersedes the
// previous one: the older request is cancelled and its result, if it still
// arrives, is reported as ErrStale instead of being returned.
type Loader struct {
	client *Client

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewLoader returns a loader fetching through client.
func NewLoader(client *Client) *Loader {
	return &Loader{client: client}
}

// Load fetches and normalizes one page. It returns ErrStale when another
// Load started before this one finished.
func (l *Loader) Load(ctx context.Context, req Request) (*Batch, error) {
	ctx, seq := l.begin(ctx)
	defer l.finish(seq)

	page, err := l.client.ConsensusEvents(ctx, req.SimulationID, req.Query)
	if !l.IsCurrent(seq) {
		return nil, ErrStale
	}
	if err != nil {
		return nil, err
	}
	b := &Batch{
		Seq:     seq,
		Request: req,
		Page:    page,
		Result:  ingest.NormalizeList(page.Data),
		Total:   EstimateTotal(page),
		Large:   IsLarge(page),
	}
	if b.Large {
		b.Segments = PlanSegments(b.Total)
	}
	if !l.IsCurrent(seq) {
		return nil, ErrStale
	}
	return b, nil
}

func (l *Loader) begin(parent context.Context) (context.Context, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l.seq++
	l.cancel = cancel
	return ctx, l.seq
}

// finish releases the context of load seq once it is done, unless a newer
// load already replaced it.
func (l *Loader) finish(seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq == l.seq && l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// InFlight reports whether a load is running.
func (l *Loader) InFlight() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// IsCurrent reports whether seq belongs to the most recent Load. Callers
// applying a Batch asynchronously check it again at apply time.
func (l *Loader) IsCurrent(seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return seq == l.seq
}

// Cancel aborts the in-flight load, if any, and marks it stale.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
}
