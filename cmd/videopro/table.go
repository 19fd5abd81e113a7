package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
	"github.com/anujsonawane60/my-video-pro-app/pkg/resynth"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "s"
}

// renderSegments lists speech segments with their bounds and length.
func renderSegments(segs []types.Segment) string {
	rows := make([][]string, 0, len(segs))
	for i, s := range segs {
		rows = append(rows, []string{strconv.Itoa(i + 1), seconds(s.Start), seconds(s.End), seconds(s.Duration())})
	}
	return renderTable(
		[]string{"#", "Start", "End", "Length"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	)
}

// writeReport prints the job summary, its stage timings and any warnings.
func writeReport(w io.Writer, r pipeline.Report) {
	summary := [][]string{
		{"Job", r.JobID},
		{"Input", seconds(r.InputSeconds)},
		{"Output", seconds(r.OutputSeconds)},
	}
	if r.SegmentsKept > 0 {
		summary = append(summary,
			[]string{"Speech segments", strconv.Itoa(r.SegmentsKept)},
			[]string{"Speech", seconds(r.SpeechSeconds)},
		)
	}
	if r.SecondsRemoved > 0 {
		summary = append(summary, []string{"Removed", seconds(r.SecondsRemoved)})
	}
	if r.FillersRemoved > 0 {
		summary = append(summary, []string{"Fillers", strconv.Itoa(r.FillersRemoved)})
	}
	if r.Entries > 0 {
		summary = append(summary, []string{"Subtitle entries", strconv.Itoa(r.Entries)})
	}
	for _, action := range sortedActions(r.Adjustments) {
		summary = append(summary, []string{"Entries " + string(action), strconv.Itoa(r.Adjustments[action])})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, summary, []columnAlignment{alignLeft, alignRight}))

	if len(r.Stages) > 0 {
		rows := make([][]string, 0, len(r.Stages))
		for _, s := range r.Stages {
			rows = append(rows, []string{s.Stage, s.Duration.Round(time.Millisecond).String()})
		}
		fmt.Fprintln(w, renderTable([]string{"Stage", "Time"}, rows, []columnAlignment{alignLeft, alignRight}))
	}

	if len(r.Warnings) > 0 {
		rows := make([][]string, 0, len(r.Warnings))
		for _, warn := range r.Warnings {
			rows = append(rows, []string{warn.Stage, warn.Kind, fmt.Sprint(warn.Err)})
		}
		fmt.Fprintln(w, renderTable([]string{"Stage", "Warning", "Detail"}, rows, nil))
	}
}

func sortedActions(m map[resynth.Action]int) []resynth.Action {
	out := make([]resynth.Action, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// renderAdjustments lists how each resynthesized entry was fitted.
func renderAdjustments(adj []resynth.EntryAdjustment) string {
	rows := make([][]string, 0, len(adj))
	for _, a := range adj {
		factor, method := "", ""
		if a.Action == resynth.ActionStretch {
			factor = strconv.FormatFloat(a.Factor, 'f', 3, 64)
			method = string(a.Method)
			if a.Capped {
				factor += " (capped)"
			}
		}
		rows = append(rows, []string{strconv.Itoa(a.Index), string(a.Action), factor, method})
	}
	return renderTable(
		[]string{"#", "Action", "Factor", "Method"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	)
}
