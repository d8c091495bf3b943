// Package list renders a target's catalog grouped by display tier.
package list

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"hlb/internal/config"
	"hlb/internal/lifecycle"
)

type Info struct {
	Snapshot    string `json:"snapshot"`
	Datetime    int64  `json:"datetime"`
	DatetimeStr string `json:"datetime_str"`
	Tier        string `json:"tier"`
	Decision    string `json:"decision"`
	Reason      string `json:"reason,omitempty"`
}

type Output struct {
	Target      string `json:"target"`
	Destination string `json:"destination"`
	Snapshots   []Info `json:"snapshots"`
	Summary     struct {
		Total  int            `json:"total"`
		Keep   int            `json:"keep"`
		Prune  int            `json:"prune"`
		ByTier map[string]int `json:"by_tier"`
	} `json:"summary"`
	now time.Time
}

func Build(t *config.Target, plan *lifecycle.Plan) Output {
	out := Output{
		Target:      t.Name,
		Destination: t.Destination.String(),
		Snapshots:   make([]Info, 0, len(plan.Snapshots)),
		now:         plan.Now,
	}
	out.Summary.ByTier = map[string]int{}

	for i, id := range plan.Snapshots {
		d := plan.Decisions[i]
		info := Info{
			Snapshot:    id.String(),
			Datetime:    id.Time().Unix(),
			DatetimeStr: id.Time().Format("2006-01-02 15:04:05"),
			Tier:        plan.Tiers[i].String(),
			Decision:    "keep",
		}
		if d.Prune {
			info.Decision = "prune"
			info.Reason = d.Reason()
			out.Summary.Prune++
		} else {
			out.Summary.Keep++
		}
		out.Summary.ByTier[info.Tier]++
		out.Snapshots = append(out.Snapshots, info)
	}
	out.Summary.Total = len(out.Snapshots)

	return out
}

func WriteJSON(w io.Writer, out Output) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

var tierColors = map[string]color.Attribute{
	"hourly":  color.FgGreen,
	"daily":   color.FgCyan,
	"weekly":  color.FgBlue,
	"monthly": color.FgMagenta,
	"yearly":  color.FgYellow,
	"idle":    color.FgHiBlack,
}

// Render prints the snapshots oldest first with a header at every tier
// change. Snapshots due for pruning are flagged with the reason.
func Render(w io.Writer, out Output, colorize bool) {
	paint := func(c *color.Color) *color.Color {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	pruneColor := paint(color.New(color.FgRed))
	dim := paint(color.New(color.FgHiBlack))

	fmt.Fprintf(w, "%s  %s\n", out.Target, dim.Sprint(out.Destination))
	if len(out.Snapshots) == 0 {
		fmt.Fprintln(w, "  no snapshots")
		return
	}

	tier := ""
	for _, s := range out.Snapshots {
		if s.Tier != tier {
			tier = s.Tier
			header := paint(color.New(tierColors[tier], color.Bold))
			fmt.Fprintf(w, "%s\n", header.Sprint(tier))
		}
		line := fmt.Sprintf("  %s  %s", s.Snapshot, dim.Sprintf("%8s ago", Age(out.now, time.Unix(s.Datetime, 0))))
		if s.Decision == "prune" {
			line += "  " + pruneColor.Sprintf("prune: %s", s.Reason)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "%d snapshots, %d to prune\n", out.Summary.Total, out.Summary.Prune)
}

// Age formats the distance between then and now with its largest unit.
func Age(now, then time.Time) string {
	d := now.Sub(then)
	switch {
	case d < 0:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
	return fmt.Sprintf("%dy", int(d.Hours()/(24*365)))
}
