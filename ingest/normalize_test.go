package ingest

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/Readm/consensus_trace/core"
)

const sampleRecords = `[
  {"eventType":"sendVote","type":"vote","timestamp":"2025-03-01T10:00:00.000Z","nodeId":"nodeA",
   "recipientPeerId":"nodeB","vote":{"type":"prevote","height":"10","round":0,"blockId":{"hash":"abc"}}},
  {"type":"receiveVote","timestamp":"2025-03-01T10:00:00.012Z","nodeId":"nodeB",
   "sourcePeer":"nodeA@10.0.0.1:26656","vote":{"type":"prevote","height":10,"round":0,"blockId":{"hash":"abc"}}},
  {"type":"enteringCommitStep","timestamp":1740823200100,"nodeId":"nodeC","height":10,"extra":{"k": [1, 2]}},
  {"timestamp":"2025-03-01T10:00:01Z","nodeId":"nodeD"}
]`

func TestNormalizeBareArray(t *testing.T) {
	res := Normalize([]byte(sampleRecords))
	if res.Warning != "" {
		t.Fatalf("unexpected warning %q", res.Warning)
	}
	if len(res.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(res.Events))
	}
	if got := res.Events[0].Type; got != "sendVote" {
		t.Fatalf("eventType should win over type, got %q", got)
	}
	if got := res.Events[3].Type; got != "unknown" {
		t.Fatalf("expected unknown type, got %q", got)
	}
	if v := res.Events[0].Vote; v == nil || v.Height == nil || *v.Height != 10 {
		t.Fatalf("quoted vote height not decoded: %+v", v)
	}
	if _, ok := res.Events[2].Fields["extra"]; !ok {
		t.Fatalf("unrecognized field dropped")
	}
	want := []string{"nodeA", "nodeB", "nodeC", "nodeD"}
	if !reflect.DeepEqual(res.Nodes, want) {
		t.Fatalf("nodes = %v, want %v", res.Nodes, want)
	}
}

func TestNormalizeWrappedMatchesBareArray(t *testing.T) {
	bare := Normalize([]byte(sampleRecords))
	for _, key := range []string{"data", "events"} {
		wrapped := Normalize([]byte(`{"` + key + `":` + sampleRecords + `,"pagination":{"limit":10000}}`))
		if !reflect.DeepEqual(bare, wrapped) {
			t.Fatalf("%s wrapper produced different output", key)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := Normalize([]byte(sampleRecords))
	encoded, err := json.Marshal(first.Events)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second := Normalize(encoded)
	if !reflect.DeepEqual(first.Events, second.Events) {
		t.Fatalf("events changed on re-normalization:\n%s", encoded)
	}
	if !reflect.DeepEqual(first.Nodes, second.Nodes) {
		t.Fatalf("nodes changed: %v vs %v", first.Nodes, second.Nodes)
	}
}

func TestNormalizeUnrecognizedShape(t *testing.T) {
	for _, payload := range []string{`42`, `"text"`, `{"items":[]}`, `{"data":{"a":1}}`, ``} {
		res := Normalize([]byte(payload))
		if !res.Empty() || len(res.Nodes) != 0 {
			t.Fatalf("payload %q: expected empty result, got %+v", payload, res)
		}
		if res.Warning == "" {
			t.Fatalf("payload %q: expected a warning", payload)
		}
	}
}

func TestNormalizeSkipsBadTimestamps(t *testing.T) {
	res := Normalize([]byte(`[{"type":"a","timestamp":"yesterday"},{"type":"b"},null,{"type":"c","timestamp":"2025-03-01T10:00:00Z"}]`))
	if len(res.Events) != 1 || res.Events[0].Type != "c" {
		t.Fatalf("expected only the valid record, got %+v", res.Events)
	}
	if res.Skipped != 3 {
		t.Fatalf("expected 3 skipped, got %d", res.Skipped)
	}
}

func TestResolveTypePrecedence(t *testing.T) {
	cases := []struct {
		fields string
		want   string
	}{
		{`,"eventType":"x","type":"y"`, "x"},
		{`,"eventType":"","type":"y"`, "y"},
		{`,"type":"y"`, "y"},
		{``, "unknown"},
	}
	for _, c := range cases {
		ev, err := NormalizeOne(json.RawMessage(`{"timestamp":"2025-03-01T10:00:00Z"` + c.fields + `}`))
		if err != nil {
			t.Fatalf("%s: %v", c.fields, err)
		}
		if ev.Type != c.want {
			t.Fatalf("%s: type = %q, want %q", c.fields, ev.Type, c.want)
		}
	}
}

func TestNormalizeRecordsMatchesPayload(t *testing.T) {
	var records []core.RawEvent
	if err := json.Unmarshal([]byte(sampleRecords), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := NormalizeRecords(records)
	want := Normalize([]byte(sampleRecords))
	if len(got.Events) != len(want.Events) || !reflect.DeepEqual(got.Nodes, want.Nodes) {
		t.Fatalf("decoded records normalized differently: %d events %v", len(got.Events), got.Nodes)
	}
	for i := range got.Events {
		if got.Events[i].Type != want.Events[i].Type || !got.Events[i].Timestamp.Equal(want.Events[i].Timestamp) {
			t.Fatalf("event %d differs: %+v vs %+v", i, got.Events[i], want.Events[i])
		}
	}
}
