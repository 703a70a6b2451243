package driversync

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

func newSummaryTable(w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader([]string{"Driver", "Layout", "Action", "Files"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
	)
}

// writeSummary prints one row per processed driver, missing ones last.
func writeSummary(w io.Writer, report *Report) error {
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	table := newSummaryTable(w)
	for _, res := range report.Results {
		if err := table.Append([]string{res.Name, res.Layout.String(), res.Action.String(), strconv.Itoa(len(res.Copied))}); err != nil {
			return err
		}
	}
	for _, name := range report.Missing {
		if err := table.Append([]string{name, "-", "not found", "0"}); err != nil {
			return err
		}
	}

	return table.Render()
}
