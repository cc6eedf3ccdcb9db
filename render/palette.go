package render

import "github.com/Readm/consensus_trace/core"

// Frame colors.
var (
	Background     = Hex("#2E364D")
	LaneColor      = Hex("#555555")
	LaneLabelColor = Hex("#cccccc")
	MarkerColor    = Hex("#888888")
	MarkerText     = Hex("#aaaaaa")
	HoverColor     = Hex("#ff9800")
	TableColor     = Hex("#00ff00")
	DefaultArrow   = Hex("#65AFFF")
	DefaultPoint   = Hex("#000000")
	BrushColor     = RGBA(100, 100, 255, 0.3)
)

// StepColors maps consensus step names to their point color. The key set
// is also the list of steps offered by the filter.
var StepColors = map[string]Color{
	"enteringNewRound":              Hex("#EF843C"),
	core.EventProposeStep:           Hex("#6ED0E0"),
	"receivedProposal":              Hex("#7EB26D"),
	"receivedCompleteProposalBlock": Hex("#EAB839"),
	"enteringPrevoteStep":           Hex("#1F78C1"),
	"enteringPrevoteWaitStep":       Hex("#BA43A9"),
	"enteringPrecommitStep":         Hex("#508642"),
	"enteringPrecommitWaitStep":     Hex("#CCA300"),
	"enteringCommitStep":            Hex("#705DA0"),
	"scheduledTimeout":              Hex("#E24D42"),
}

// StepOrder is the legend order of StepColors.
var StepOrder = []string{
	"enteringNewRound",
	core.EventProposeStep,
	"receivedProposal",
	"receivedCompleteProposalBlock",
	"enteringPrevoteStep",
	"enteringPrevoteWaitStep",
	"enteringPrecommitStep",
	"enteringPrecommitWaitStep",
	"enteringCommitStep",
	"scheduledTimeout",
}

// MessageKind is one selectable arrow type.
type MessageKind struct {
	Label string `json:"label"`
	Type  string `json:"type"`
	Color Color  `json:"color"`
}

// MessageKinds lists the arrow types in legend order.
var MessageKinds = []MessageKind{
	{Label: core.MessagePrevote, Type: core.MessagePrevote, Color: Hex("#4FC3F7")},
	{Label: core.MessagePrecommit, Type: core.MessagePrecommit, Color: Hex("#81C784")},
	{Label: core.MessageBlockPart, Type: core.MessageBlockPart, Color: Hex("#EAB839")},
}

// DefaultSelectedSteps is the step filter applied to a fresh session.
var DefaultSelectedSteps = []string{"enteringCommitStep", core.EventProposeStep}

// AllMessageLabels returns every arrow label.
func AllMessageLabels() []string {
	out := make([]string, len(MessageKinds))
	for i, k := range MessageKinds {
		out[i] = k.Label
	}
	return out
}

// ArrowColor returns the palette color of a message type.
func ArrowColor(typ string) Color {
	for _, k := range MessageKinds {
		if k.Type == typ {
			return k.Color
		}
	}
	return DefaultArrow
}

// StepColor returns the palette color of a step type.
func StepColor(typ string) Color {
	if c, ok := StepColors[typ]; ok {
		return c
	}
	return DefaultPoint
}
