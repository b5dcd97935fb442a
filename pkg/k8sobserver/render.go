package k8sobserver

import (
	"fmt"
	"sort"
	"strings"
)

// eventMarker maps an event Type to the Unicode marker used when rendering
// a human-readable report (§4.3).
func eventMarker(eventType string) string {
	switch eventType {
	case "Normal":
		return "ℹ️"
	case "Warning":
		return "⚠️"
	default:
		return "💢"
	}
}

// Render produces the deterministic human-readable report: one line per
// pod/service/PVC with its state, followed by a Recap block that
// aggregates duplicate warning messages across the whole report as
// "message (xN)".
func Render(info *AppDeploymentInfo) string {
	var b strings.Builder

	renderObjects(&b, "Pods", podLines(info.Pods))
	renderObjects(&b, "Services", serviceLines(info.Services))
	renderObjects(&b, "Persistent Volume Claims", pvcLines(info.PVCs))

	recap := recapWarnings(info)
	if len(recap) > 0 {
		b.WriteString("\nRecap:\n")
		for _, line := range recap {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}

type objectLine struct {
	header string
	events []EventInfo
}

func podLines(pods []PodInfo) []objectLine {
	lines := make([]objectLine, 0, len(pods))
	for _, p := range pods {
		header := fmt.Sprintf("  %s: %s", p.Name, p.State)
		if p.State == StateFailing && p.Reason != "" {
			header += fmt.Sprintf(" (%s)", p.Reason)
		}
		lines = append(lines, objectLine{header: header, events: p.Events})
	}
	return lines
}

func serviceLines(services []ServiceInfo) []objectLine {
	lines := make([]objectLine, 0, len(services))
	for _, s := range services {
		lines = append(lines, objectLine{
			header: fmt.Sprintf("  %s: %s", s.Name, s.State),
			events: s.Events,
		})
	}
	return lines
}

func pvcLines(pvcs []PVCInfo) []objectLine {
	lines := make([]objectLine, 0, len(pvcs))
	for _, p := range pvcs {
		header := fmt.Sprintf("  %s: %s", p.Name, p.State)
		if p.RequestStorage != "" {
			header += fmt.Sprintf(" (%s)", p.RequestStorage)
		}
		lines = append(lines, objectLine{header: header, events: p.Events})
	}
	return lines
}

func renderObjects(b *strings.Builder, title string, lines []objectLine) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString(":\n")
	for _, l := range lines {
		b.WriteString(l.header)
		b.WriteString("\n")
		for _, ev := range l.events {
			b.WriteString(fmt.Sprintf("    %s %s: %s\n", eventMarker(ev.Type), ev.Reason, ev.Message))
		}
	}
}

// recapWarnings aggregates identical Warning-type event messages across
// the whole report into "(xN)" lines, sorted by descending count then
// message for determinism.
func recapWarnings(info *AppDeploymentInfo) []string {
	counts := make(map[string]int)
	order := make([]string, 0)

	collect := func(events []EventInfo) {
		for _, ev := range events {
			if ev.Type != "Warning" {
				continue
			}
			if _, seen := counts[ev.Message]; !seen {
				order = append(order, ev.Message)
			}
			counts[ev.Message]++
		}
	}
	for _, p := range info.Pods {
		collect(p.Events)
	}
	for _, s := range info.Services {
		collect(s.Events)
	}
	for _, p := range info.PVCs {
		collect(p.Events)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return order[i] < order[j]
	})

	lines := make([]string, 0, len(order))
	for _, msg := range order {
		n := counts[msg]
		if n > 1 {
			lines = append(lines, fmt.Sprintf("  %s %s (x%d)", eventMarker("Warning"), msg, n))
		} else {
			lines = append(lines, fmt.Sprintf("  %s %s", eventMarker("Warning"), msg))
		}
	}
	return lines
}
