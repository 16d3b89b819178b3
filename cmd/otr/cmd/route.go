package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/markkurossi/tabulate"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/cache"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/pipeline"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/render"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/adaptive"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/config"
)

var (
	routeConfig    string
	routeLayers    string
	routeAdaptive  bool
	routeDRU       string
	routeOut       string
	routeFragment  string
	routePNG       string
	routePNGLayers []string
	routeTheme     string
	routeFlip      bool
	routeCache     string
	routeRedis     string
	routeRefresh   bool
	routeWorkers   int
	routeSeed      uint64
)

var routeCmd = &cobra.Command{
	Use:   "route <board_file>",
	Short: "Route the unconnected nets of a KiCad board",
	Long: `Route every net of a KiCad board that has at least two pads.

The layer stack is chosen by --layers: a preset name (see "otr stacks"),
"board" for the copper layers the board declares, or omitted to follow the
configuration file. With --adaptive the cheapest preset that converges is
used.

Unroutable nets are reported, not treated as errors.

Examples:
  otr route board.kicad_pcb --out routed.kicad_pcb
  otr route board.kicad_pcb --layers 4layer --dru board.kicad_dru
  otr route board.kicad_pcb --adaptive --png preview.png --png-layers F.Cu
  otr route board.kicad_pcb --cache ~/.cache/otr --fragment routes.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	f := routeCmd.Flags()
	f.StringVarP(&routeConfig, "config", "c", "", "TOML job configuration")
	f.StringVarP(&routeLayers, "layers", "l", "", "layer stack preset, or \"board\"")
	f.BoolVar(&routeAdaptive, "adaptive", false, "try progressively larger stacks until routing converges")
	f.StringVar(&routeDRU, "dru", "", "KiCad custom design rules (.kicad_dru)")
	f.StringVarP(&routeOut, "out", "o", "", "write the board with the routes inserted")
	f.StringVar(&routeFragment, "fragment", "", "write only the routed segment and via records")
	f.StringVar(&routePNG, "png", "", "write a PNG preview")
	f.StringSliceVar(&routePNGLayers, "png-layers", nil, "copper layers shown in the preview (default all)")
	f.StringVar(&routeTheme, "theme", render.ThemeNames[render.ThemeClassic], "preview colour theme")
	f.BoolVar(&routeFlip, "flip", false, "draw the preview from below")
	f.StringVar(&routeCache, "cache", "", "cache routed results in this directory")
	f.StringVar(&routeRedis, "redis", "", "cache routed results in Redis (redis://host:port/db)")
	f.BoolVar(&routeRefresh, "refresh", false, "route even when a cached result exists")
	f.IntVarP(&routeWorkers, "workers", "j", 0, "parallel searches during negotiation (overrides config)")
	f.Uint64Var(&routeSeed, "seed", 0, "seed for the net reshuffle (overrides config)")
	routeCmd.MarkFlagsMutuallyExclusive("layers", "adaptive")
	routeCmd.MarkFlagsMutuallyExclusive("cache", "redis")
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	w := cmd.OutOrStdout()
	pcb.SetLogger(logger)

	cfg, err := loadConfig(routeConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Routing.Workers = routeWorkers
	}
	if cmd.Flags().Changed("seed") {
		cfg.Routing.Seed = routeSeed
	}

	req := pipeline.Request{Config: cfg, Stack: routeLayers, Refresh: routeRefresh || routePNG != ""}
	if routeAdaptive {
		req.Stack = pipeline.StackAdaptive
	}
	if req.Board, err = os.ReadFile(args[0]); err != nil {
		return errors.Wrap(errors.ErrCodeNotFound, err, "read board")
	}
	if routeDRU != "" {
		data, err := os.ReadFile(routeDRU)
		if err != nil {
			return errors.Wrap(errors.ErrCodeNotFound, err, "read design rules")
		}
		req.Rules = string(data)
	}

	c, err := openCache(ctx, routeCache, routeRedis)
	if err != nil {
		return err
	}
	defer c.Close()

	p := newProgress(logger)
	out, err := pipeline.NewRunner(c, logger).Run(ctx, req)
	if err != nil {
		return err
	}
	p.done("routing finished")

	printResult(w, args[0], out)

	if routeOut != "" {
		board, err := out.Inserted()
		if err != nil {
			return err
		}
		if err := os.WriteFile(routeOut, []byte(board), 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "write board")
		}
		printSuccess(w, "Wrote %s", routeOut)
	}
	if routeFragment != "" {
		if err := os.WriteFile(routeFragment, []byte(out.Entry.Fragment), 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "write fragment")
		}
		printSuccess(w, "Wrote %s", routeFragment)
	}
	if routePNG != "" {
		if err := writePreview(out, cfg); err != nil {
			return err
		}
		printSuccess(w, "Wrote %s", routePNG)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openCache selects the result cache of the flags; none disables caching
func openCache(ctx context.Context, dir, redisURL string) (cache.Cache, error) {
	switch {
	case redisURL != "":
		return cache.NewRedisCache(ctx, redisURL, "")
	case dir != "":
		return cache.NewFileCache(dir)
	}
	return cache.NewNullCache(), nil
}

func writePreview(out *pipeline.Output, cfg *config.Config) error {
	theme, ok := render.ParseTheme(routeTheme)
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown theme %q", routeTheme)
	}
	opts := render.Options{Scale: cfg.Output.PNGScale, Theme: theme, Flip: routeFlip}
	if len(routePNGLayers) > 0 {
		opts.Layers = render.NewLayerConfig()
		opts.Layers.ShowOnly(routePNGLayers...)
	}
	return render.SavePNG(routePNG, render.SceneOf(out.Job, out.Router), opts)
}

func printResult(w io.Writer, name string, out *pipeline.Output) {
	res := out.Result()
	printTitle(w, "Routing "+name)
	printKeyValue(w, "Stack", out.Entry.Stack)
	printKeyValue(w, "Nets", fmt.Sprintf("%d/%d routed (%.0f%%)", res.NetsRouted, res.NetsRequested, 100*res.CompletionRate()))
	printKeyValue(w, "Iterations", res.Iterations)
	printKeyValue(w, "Overflow", res.Overflow)
	printKeyValue(w, "Segments", res.Statistics.Segments)
	printKeyValue(w, "Vias", res.Statistics.Vias)
	printKeyValue(w, "Length", fmt.Sprintf("%.2f mm", res.Statistics.TotalLength))
	if out.Cached {
		fmt.Fprintln(w, styleDim.Render("  (cached result from "+out.Entry.CreatedAt.Format("2006-01-02 15:04")+")"))
	}
	if out.Rules != nil {
		for _, s := range out.Rules.Skipped {
			printWarning(w, "Design rule skipped: %s", s)
		}
	}
	fmt.Fprintln(w)

	if len(out.Attempts) > 0 {
		printAttempts(w, out.Attempts)
		fmt.Fprintln(w)
	}
	if len(res.Nets) > 0 {
		printNets(w, res)
		fmt.Fprintln(w)
	}
	for _, dp := range res.DiffPairs {
		printKeyValue(w, "Pair "+dp.Name, fmt.Sprintf("%.0f%% coupled", 100*dp.Coupling))
	}

	switch {
	case res.Converged:
		printSuccess(w, "All nets routed")
	case len(res.UnroutedNets) > 0:
		printFailure(w, "Unrouted: %s", strings.Join(res.UnroutedNets, ", "))
	}
	if res.Overflow > 0 {
		printWarning(w, "Overused cells remain on: %s", strings.Join(res.OverflowNets, ", "))
	}
}

func printNets(w io.Writer, res *router.Result) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Net").SetAlign(tabulate.ML)
	tab.Header("Class").SetAlign(tabulate.ML)
	tab.Header("Segments").SetAlign(tabulate.MR)
	tab.Header("Vias").SetAlign(tabulate.MR)
	tab.Header("Length").SetAlign(tabulate.MR)
	tab.Header("Layers").SetAlign(tabulate.ML)

	for _, n := range res.Nets {
		row := tab.Row()
		row.Column(n.Name)
		row.Column(n.Class)
		row.Column(fmt.Sprintf("%d", n.Segments))
		row.Column(fmt.Sprintf("%d", n.Vias))
		row.Column(fmt.Sprintf("%.2f", n.Length))
		row.Column(strings.Join(n.Layers, ","))
	}
	row := tab.Row()
	row.Column("Total").SetFormat(tabulate.FmtBold)
	row.Column("")
	row.Column(fmt.Sprintf("%d", res.Statistics.Segments)).SetFormat(tabulate.FmtBold)
	row.Column(fmt.Sprintf("%d", res.Statistics.Vias)).SetFormat(tabulate.FmtBold)
	row.Column(fmt.Sprintf("%.2f", res.Statistics.TotalLength)).SetFormat(tabulate.FmtBold)
	row.Column("")
	tab.Print(w)
}

func printAttempts(w io.Writer, attempts []adaptive.Attempt) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Stack").SetAlign(tabulate.ML)
	tab.Header("Routed").SetAlign(tabulate.MR)
	tab.Header("Overflow").SetAlign(tabulate.MR)
	tab.Header("Time").SetAlign(tabulate.MR)
	tab.Header("Outcome").SetAlign(tabulate.ML)

	for _, a := range attempts {
		row := tab.Row()
		row.Column(a.Stack)
		row.Column(fmt.Sprintf("%d/%d", a.Routed, a.Requested))
		row.Column(fmt.Sprintf("%d", a.Overflow))
		row.Column(a.Duration.Round(time.Millisecond).String())
		switch {
		case a.Err != nil:
			row.Column("skipped: " + a.Err.Error())
		case a.Converged:
			row.Column("converged")
		default:
			row.Column("congested")
		}
	}
	tab.Print(w)
}
