package render

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Readm/consensus_trace/core"
)

// Row is one label/value line of a tooltip.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Tooltip is overlay content for a hovered shape.
type Tooltip struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
	// X and Y are the canvas coordinates of the pointer that produced it.
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const clockLayout = "15:04:05.000"

// TooltipFor builds the overlay rows for a shape, or nil.
func TooltipFor(s core.Shape) *Tooltip {
	switch v := s.(type) {
	case *core.StateChangePoint:
		if v == nil {
			return nil
		}
		rows := []Row{
			{"Node", v.Node},
			{"Time", v.Timestamp.UTC().Format("15:04:05")},
			{"Timestamp", clock(v.Timestamp)},
			{"Height", optInt(v.Height)},
			{"Round", optInt(v.Round)},
		}
		if v.IsOurTurn != nil {
			turn := "No"
			if *v.IsOurTurn {
				turn = "Yes"
			}
			rows = append(rows, Row{"Our Turn", turn})
		}
		return &Tooltip{Kind: core.CanvasStep, Title: v.Type, Rows: rows}
	case *core.Arrow:
		if v == nil {
			return nil
		}
		return &Tooltip{Kind: core.CanvasArrow, Title: v.Type, Rows: []Row{
			{"From", v.FromNode},
			{"To", v.ToNode},
			{"Send Time", clock(v.SendTime)},
			{"Recv Time", clock(v.RecvTime)},
			{"Latency", fmt.Sprintf("%.2fms", v.LatencyMillis())},
			{"Height", optInt(v.Height)},
			{"Timestamp", clock(v.Timestamp)},
		}}
	}
	return nil
}

func clock(t time.Time) string {
	return t.UTC().Format(clockLayout)
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
