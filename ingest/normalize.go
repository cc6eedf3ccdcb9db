// Package ingest turns raw events API payloads into normalized CanvasEvents.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Readm/consensus_trace/core"
)

// Result is the output of a normalization pass.
type Result struct {
	Events []core.CanvasEvent
	Nodes  []string
	// Skipped counts records dropped for lacking a usable timestamp or
	// carrying an undecodable payload.
	Skipped int
	// Warning is set when the payload shape was not recognized.
	Warning string
}

// Empty reports whether the result holds no events.
func (r Result) Empty() bool {
	return len(r.Events) == 0
}

// Payload wrapper keys, in lookup order.
var wrapperKeys = []string{"data", "events"}

// Normalize accepts a bare array of records or an object wrapping the
// array under "data" or "events". Any other shape yields an empty result
// with Warning set; it is never an error.
func Normalize(payload []byte) Result {
	records, err := extractRecords(payload)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(payload)).Msg("ingest: unrecognized events payload")
		return Result{Warning: err.Error()}
	}
	return normalizeRaw(records)
}

// NormalizeList normalizes records already split out of a payload, such as
// the data array of a paginated events response.
func NormalizeList(records []json.RawMessage) Result {
	return normalizeRaw(records)
}

// NormalizeRecords normalizes already decoded records.
func NormalizeRecords(records []core.RawEvent) Result {
	raw := make([]json.RawMessage, 0, len(records))
	skipped := 0
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			skipped++
			continue
		}
		raw = append(raw, b)
	}
	res := normalizeRaw(raw)
	res.Skipped += skipped
	return res
}

func extractRecords(payload []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return records, nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		for _, key := range wrapperKeys {
			inner, ok := wrapper[key]
			if !ok {
				continue
			}
			inner = bytes.TrimSpace(inner)
			if len(inner) == 0 || inner[0] != '[' {
				continue
			}
			var records []json.RawMessage
			if err := json.Unmarshal(inner, &records); err != nil {
				return nil, fmt.Errorf("decode %q: %w", key, err)
			}
			return records, nil
		}
		return nil, fmt.Errorf("object has no %v array", wrapperKeys)
	}
	return nil, fmt.Errorf("payload is neither an array nor an object")
}

func normalizeRaw(records []json.RawMessage) Result {
	res := Result{Events: make([]core.CanvasEvent, 0, len(records))}
	for i, rec := range records {
		ev, err := NormalizeOne(rec)
		if err != nil {
			res.Skipped++
			log.Debug().Err(err).Int("index", i).Msg("ingest: record skipped")
			continue
		}
		res.Events = append(res.Events, ev)
	}
	res.Nodes = nodesOf(res.Events)
	return res
}

func nodesOf(events []core.CanvasEvent) []string {
	nodes := lo.Uniq(lo.FlatMap(events, func(e core.CanvasEvent, _ int) []string {
		return e.NodeIDs()
	}))
	sort.Strings(nodes)
	return nodes
}
