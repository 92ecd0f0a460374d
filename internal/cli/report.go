package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mitchellh/mapstructure"

	"github.com/perjlieb/qutip/pkg/result"
)

// RunStatsView is the typed view of the opaque solver metadata attached
// to trajectory records.
type RunStatsView struct {
	Solver   string  `mapstructure:"solver"`
	Method   string  `mapstructure:"method"`
	Gamma    float64 `mapstructure:"gamma"`
	TimeStep float64 `mapstructure:"time_step"`
	NumSteps int     `mapstructure:"num_steps"`
}

// DecodeRunStats decodes the metadata map into its typed view. Unknown
// keys are ignored.
func DecodeRunStats(stats map[string]any) (RunStatsView, error) {
	var view RunStatsView
	if err := mapstructure.Decode(stats, &view); err != nil {
		return RunStatsView{}, fmt.Errorf("failed to decode run stats: %w", err)
	}
	return view, nil
}

// Report renders the batch aggregate as markdown.
func Report(agg result.MultiTraj) (string, error) {
	stats, err := agg.RunStats()
	if err != nil {
		return "", err
	}
	view, err := DecodeRunStats(stats)
	if err != nil {
		return "", err
	}
	times, err := agg.Times()
	if err != nil {
		return "", err
	}
	mean, err := agg.AverageExpect(ObservableKey)
	if err != nil {
		return "", err
	}
	std, err := agg.StdExpect(ObservableKey)
	if err != nil {
		return "", err
	}
	rates, err := agg.Photocurrent()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Batch report\n\n")
	fmt.Fprintf(&b, "- Solver: %s (%s)\n", view.Solver, view.Method)
	fmt.Fprintf(&b, "- Trajectories: %d\n", agg.NumTraj())
	fmt.Fprintf(&b, "- Decay rate: %g\n", view.Gamma)
	fmt.Fprintf(&b, "- Time span: [%g, %g] in %d steps\n\n",
		times[0], times[len(times)-1], len(times))

	b.WriteString("## Excitation number\n\n")
	b.WriteString("| t | mean | std |\n|---|------|-----|\n")
	for _, i := range []int{0, len(times) / 2, len(times) - 1} {
		fmt.Fprintf(&b, "| %.3f | %.4f | %.4f |\n", times[i], mean[i], std[i])
	}

	b.WriteString("\n## Collapse rates\n\n")
	for ch, rate := range rates {
		var total float64
		for i, r := range rate {
			total += r * (times[i+1] - times[i])
		}
		fmt.Fprintf(&b, "- channel %d: %.4f events per trajectory\n", ch, total)
	}
	return b.String(), nil
}

// RenderMarkdown pretty-prints a markdown report for the terminal.
func RenderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return "", fmt.Errorf("failed to build renderer: %w", err)
	}
	return r.Render(md)
}
