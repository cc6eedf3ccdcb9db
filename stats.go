package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	summaryHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	summaryLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(18)
	summaryValue  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	summaryWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	summaryError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	summaryBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// PrintSummary writes the reconstruction statistics of f.
func PrintSummary(w io.Writer, f *Frame) {
	if f == nil {
		fmt.Fprintln(w, "No frame available")
		return
	}
	st := f.Stats
	rows := [][2]string{
		{"Status", string(f.Status)},
		{"Events", fmt.Sprintf("%d (%d after node filter)", st.Events, st.FilteredEvents)},
		{"Skipped records", fmt.Sprint(st.Skipped)},
		{"Nodes", fmt.Sprint(len(f.Nodes))},
		{"Points", fmt.Sprintf("%d (%d visible)", st.Points, st.VisiblePoints)},
		{"Arrows", fmt.Sprintf("%d (%d visible)", st.Arrows, st.VisibleArrows)},
		{"P2P candidates", fmt.Sprint(st.P2PCandidates)},
		{"Unmatched sends", fmt.Sprint(st.UnmatchedSends)},
		{"Unkeyed records", fmt.Sprint(st.Unkeyed)},
		{"Block markers", fmt.Sprint(len(f.BlockMarkers))},
		{"Viewport", fmt.Sprintf("%.0f .. %.0f ms (zoom %.2f)", f.Viewport.Start, f.Viewport.End, f.Viewport.ZoomLevel)},
	}
	if f.Large {
		rows = append(rows, [2]string{"Segment", fmt.Sprintf("%d / %d of ~%d events", f.CurrentSegment, len(f.Segments), st.TotalCount)})
	}

	var b strings.Builder
	title := "Consensus trace"
	if f.SimulationID != "" {
		title += " " + f.SimulationID
	}
	b.WriteString(summaryHeader.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, summaryLabel.Render(r[0]), summaryValue.Render(r[1])))
	}
	if st.Warning != "" {
		b.WriteString("\n" + summaryWarn.Render("warning: "+st.Warning))
	}
	if st.UnmatchedSends > 0 {
		b.WriteString("\n" + summaryWarn.Render(fmt.Sprintf("%d sends had no matching receive", st.UnmatchedSends)))
	}
	if f.Error != "" {
		b.WriteString("\n" + summaryError.Render("error: "+f.Error))
	}
	fmt.Fprintln(w, summaryBox.Render(b.String()))
}
