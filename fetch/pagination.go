package fetch

import (
	"strconv"
	"strings"
)

const (
	// MockCursorPrefix marks placeholder cursors generated for segment
	// navigation; the backend rejects them.
	MockCursorPrefix = "segment_"
	// SegmentSize is the number of events per segment.
	SegmentSize = 10000
	// EstimatedLargeTotal stands in for an unknown total when a full page
	// still reports more data.
	EstimatedLargeTotal = 50000
)

// RealCursor returns cursor, or "" when it is a mock segment cursor.
func RealCursor(cursor string) string {
	if strings.HasPrefix(cursor, MockCursorPrefix) {
		return ""
	}
	return cursor
}

// EstimateTotal returns the authoritative total when present. Otherwise a
// full page with more data behind it is treated as large and unknown, and
// anything else as complete.
func EstimateTotal(p *Page) int {
	if p.Pagination.TotalCount != nil {
		return *p.Pagination.TotalCount
	}
	if pageIsFull(p) && p.Pagination.HasNext {
		return EstimatedLargeTotal
	}
	return len(p.Data)
}

// IsLarge reports whether the dataset needs segment navigation.
func IsLarge(p *Page) bool {
	return EstimateTotal(p) > SegmentSize || (pageIsFull(p) && p.Pagination.HasNext)
}

func pageIsFull(p *Page) bool {
	limit := p.Pagination.Limit
	if limit <= 0 {
		limit = SegmentSize
	}
	return len(p.Data) >= limit
}

// Segment is one fixed-size slice of a large dataset. IDs start at 1.
type Segment struct {
	ID         int    `json:"id"`
	Cursor     string `json:"cursor,omitempty"`
	EventCount int    `json:"eventCount"`
}

// PlanSegments splits total events into ceil(total/SegmentSize) segments.
func PlanSegments(total int) []Segment {
	if total <= 0 {
		return nil
	}
	n := (total + SegmentSize - 1) / SegmentSize
	segs := make([]Segment, n)
	for i := range segs {
		segs[i] = Segment{ID: i + 1, EventCount: min(SegmentSize, total-i*SegmentSize)}
		if i > 0 {
			segs[i].Cursor = MockCursorPrefix + strconv.Itoa(i)
		}
	}
	return segs
}
