package ui

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/doridoridoriand/nodeboard/internal/procman"
	"github.com/doridoridoriand/nodeboard/internal/state"
	"github.com/doridoridoriand/nodeboard/internal/sysmon"
	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
)

const (
	barScaleMs = 50
	barWidth   = 10
)

type nodeRow struct {
	Name    string
	Record  state.HealthRecord
	History []state.Point
}

type nodeGroup struct {
	Name  string
	Nodes []nodeRow
}

var groupOrder = map[config.NodeType]int{
	config.NodeTypeSSH:     0,
	config.NodeTypeTelnet:  1,
	config.NodeTypeUnknown: 2,
}

// groupNodes buckets records by node type: ssh, telnet, then unknown.
// Nodes inside a group are sorted by name.
func groupNodes(data map[string]state.HealthRecord, history func(string) []state.Point) []nodeGroup {
	if len(data) == 0 {
		return nil
	}
	groups := make(map[config.NodeType][]nodeRow)
	for name, record := range data {
		nodeType := record.Type
		if _, ok := groupOrder[nodeType]; !ok {
			nodeType = config.NodeTypeUnknown
		}
		row := nodeRow{Name: name, Record: record}
		if history != nil {
			row.History = history(name)
		}
		groups[nodeType] = append(groups[nodeType], row)
	}

	types := make([]config.NodeType, 0, len(groups))
	for nodeType := range groups {
		types = append(types, nodeType)
	}
	sort.Slice(types, func(i, j int) bool {
		return groupOrder[types[i]] < groupOrder[types[j]]
	})

	result := make([]nodeGroup, 0, len(types))
	for _, nodeType := range types {
		rows := groups[nodeType]
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Name < rows[j].Name
		})
		result = append(result, nodeGroup{Name: string(nodeType), Nodes: rows})
	}
	return result
}

func formatNodeLine(width int, row nodeRow, theme Theme, now time.Time) []styledRune {
	style := statusStyle(theme, row.Record.Status)
	rt := time.Duration(row.Record.ResponseTimeMs) * time.Millisecond

	parts := []styledText{
		{text: padOrTrim(row.Name, min(14, width)), style: theme.Base},
		{text: " ", style: theme.Base},
		{text: padOrTrim(row.Record.IP, min(16, width)), style: theme.Base},
		{text: " ", style: theme.Base},
		{text: padOrTrim(string(row.Record.Status), 9), style: style},
		{text: " ", style: theme.Base},
		{text: padOrTrim("RT:"+formatResponse(rt), 10), style: theme.Base},
		{text: " ", style: theme.Base},
		{text: padOrTrim("AVG:"+formatResponse(averageResponse(row.History)), 11), style: theme.Base},
		{text: " ", style: theme.Base},
		{text: buildBar(row.Record.ResponseTimeMs, barScaleMs, barWidth), style: style},
		{text: " ", style: theme.Base},
		{text: padOrTrim(formatAge(row.Record.LastCheck, now), 16), style: theme.Muted},
		{text: " ", style: theme.Base},
		{text: row.Record.Recommendation, style: theme.Muted},
	}
	return flattenStyledText(parts, width)
}

func buildBar(ms int64, scale int, width int) string {
	if width <= 0 {
		return ""
	}
	if scale <= 0 {
		scale = 10
	}
	if ms <= 0 {
		return strings.Repeat(" ", width)
	}
	units := int(math.Round(float64(ms) / float64(scale)))
	units = max(1, min(units, width))
	return strings.Repeat("#", units) + strings.Repeat(" ", width-units)
}

func formatResponse(rt time.Duration) string {
	if rt <= 0 {
		return "-"
	}
	if rt < time.Second {
		return fmt.Sprintf("%dms", rt.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", rt.Seconds())
}

func averageResponse(history []state.Point) time.Duration {
	if len(history) == 0 {
		return 0
	}
	var sum time.Duration
	for _, point := range history {
		sum += point.ResponseTime
	}
	return sum / time.Duration(len(history))
}

func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func statusStyle(theme Theme, status state.Status) tcell.Style {
	switch status {
	case state.StatusHealthy:
		return theme.Healthy
	case state.StatusUnhealthy:
		return theme.Unhealthy
	case state.StatusError:
		return theme.Error
	default:
		return theme.Muted
	}
}

func formatSummary(data map[string]state.HealthRecord) string {
	var healthy, unhealthy, errored int
	for _, record := range data {
		switch record.Status {
		case state.StatusHealthy:
			healthy++
		case state.StatusUnhealthy:
			unhealthy++
		default:
			errored++
		}
	}
	return fmt.Sprintf(" nodes=%d  healthy=%d  unhealthy=%d  error=%d", len(data), healthy, unhealthy, errored)
}

func formatConfigInfo(settings config.Settings, checking bool) string {
	info := fmt.Sprintf(" interval=%s  timeout=%s  max_concurrent=%d  refresh=%s",
		formatDuration(settings.Interval()),
		formatDuration(settings.Timeout()),
		settings.MaxConcurrentChecks,
		formatDuration(settings.Refresh()))
	if checking {
		info += "  [checking]"
	}
	return info
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func formatSystemLine(sample sysmon.Sample) string {
	if sample.Time.IsZero() {
		return " system: collecting..."
	}
	var b strings.Builder
	fmt.Fprintf(&b, " CPU %5.1f%% (%d cores)  load %.2f %.2f %.2f  MEM %s/%s (%.1f%%)",
		sample.CPU.Percent, sample.CPU.Cores,
		sample.CPU.LoadAvg[0], sample.CPU.LoadAvg[1], sample.CPU.LoadAvg[2],
		humanize.IBytes(sample.Memory.Used), humanize.IBytes(sample.Memory.Total), sample.Memory.Percent())
	for _, disk := range sample.Disks {
		fmt.Fprintf(&b, "  DISK %s %.1f%% of %s", disk.Path, disk.Percent(), humanize.IBytes(disk.Total))
	}
	return b.String()
}

func formatScriptLine(index int, status procman.Status, now time.Time) string {
	pid := "-"
	if status.PID > 0 {
		pid = fmt.Sprint(status.PID)
	}
	uptime := "-"
	if d := status.Uptime(now); d > 0 {
		uptime = d.Truncate(time.Second).String()
	}
	line := fmt.Sprintf("[%d] %s %s pid=%s up=%s",
		index, padOrTrim(status.Name, 18), padOrTrim(string(status.State), 8), padOrTrim(pid, 7), uptime)
	if status.State == procman.StateFailed || status.State == procman.StateKilled {
		line += fmt.Sprintf(" exit=%d", status.ExitCode)
	}
	return line
}

func scriptStyle(theme Theme, st procman.State) tcell.Style {
	switch st {
	case procman.StateRunning:
		return theme.Running
	case procman.StateFailed:
		return theme.Unhealthy
	case procman.StateKilled:
		return theme.Error
	default:
		return theme.Base
	}
}
