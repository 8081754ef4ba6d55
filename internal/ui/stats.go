package ui

import (
	"fmt"

	"github.com/BioHazard786/pairlink/internal/room"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderStats formats relay statistics as a table.
func RenderStats(server string, s room.Stats) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s %s", IconWeb, server))
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"Rooms", "Waiting", "Paired", "Participants"})
	t.AppendRow(table.Row{s.Rooms, s.Waiting, s.Paired, s.Participants})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return t.Render()
}

// RenderAddresses formats the addresses a relay reported for itself.
func RenderAddresses(addrs []string) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Address"})
	for i, a := range addrs {
		t.AppendRow(table.Row{i + 1, a})
	}
	return t.Render()
}
