package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"secretsanta/internal/draw"
	"secretsanta/internal/exchange"
	"secretsanta/internal/history"
	"secretsanta/internal/loader"
	"secretsanta/internal/logging"
	"secretsanta/internal/metrics"
	"secretsanta/internal/report"
	"secretsanta/internal/roster"
	"secretsanta/internal/settings"
	"secretsanta/internal/tui"
)

// app holds state shared by every subcommand.
type app struct {
	logger *zap.Logger

	// Global flags
	dir      string
	logLevel string
	verbose  bool

	// draw flags
	seed        uint64
	maxAttempts int
	workers     int
	year        int
	outputs     []string
	metricsFile string
	interactive bool
	dryRun      bool
	noHistory   bool

	// add flags
	newRow loader.Row

	// card flags
	pretty bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "secretsanta",
		Short: "Secret Santa draws with a small and a large gift per person",
		Long: `secretsanta assigns every participant one small-gift recipient and one
large-gift recipient. Nobody gives to themselves or their spouse, no two
people give each other the same kind of gift, and last year's pairings are
not repeated.

An exchange is a directory holding a roster, settings and the history of
earlier draws. Named exchanges live under ~/.secretsanta/<name>/; commands
that take an optional exchange name fall back to --dir, then to the
current directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := a.logLevel
			if a.verbose {
				level = "debug"
			}
			logger, err := logging.New(level)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.dir, "dir", "", "Exchange directory (default: current directory)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Print every failed attempt and debug logs")

	root.AddCommand(
		a.initCmd(),
		a.listCmd(),
		a.addCmd(),
		a.drawCmd(),
		a.checkCmd(),
		a.historyCmd(),
		a.cardCmd(),
	)
	return root
}

// log returns the logger, or a no-op logger when PersistentPreRunE did not run.
func (a *app) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

// openExchange resolves the exchange named by args, --dir, or the current
// directory, in that order.
func (a *app) openExchange(args []string) (*exchange.Exchange, error) {
	switch {
	case len(args) > 0:
		return exchange.Open(args[0])
	case a.dir != "":
		return exchange.At(a.dir)
	}
	return exchange.At(".")
}

// loadRoster reads the exchange roster. A freshly created template is not
// an error worth failing on twice, so the caller gets a hint instead.
func (a *app) loadRoster(cmd *cobra.Command, x *exchange.Exchange, s *settings.Settings) (*roster.Roster, error) {
	path := x.RosterPath(s)
	r, err := loader.Load(path)
	if errors.Is(err, loader.ErrTemplateCreated) {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\nAdd one row per participant and run again.\n", path)
		return nil, err
	}
	return r, err
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [name]",
		Short: "Create a new exchange",
		Long: `Create a new exchange at ~/.secretsanta/<name>/ with default settings and
an empty roster.csv holding only the header row.

Without a name, the --dir directory (or the current directory) is set up
instead. Existing files are left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	var (
		x   *exchange.Exchange
		err error
	)
	if len(args) == 1 {
		x, err = exchange.Init(args[0])
	} else {
		x, err = a.openExchange(nil)
		if err == nil {
			err = x.Scaffold()
		}
	}
	if err != nil {
		return err
	}
	s, err := x.Settings()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created exchange at %s\nroster: %s\n", x.Dir, x.RosterPath(s))
	return nil
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List named exchanges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := exchange.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no exchanges (run 'secretsanta init <name>')")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// add
// ---------------------------------------------------------------------------

func (a *app) addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [exchange]",
		Short: "Add a participant to the roster",
		Long: `Append one participant to the exchange's CSV roster.

Without --name, a form asks for the participant's name, spouse and the
people they gave to last time. References must name participants already
in the roster.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runAdd,
	}
	f := cmd.Flags()
	f.StringVar(&a.newRow.Name, "name", "", "Participant name")
	f.StringVar(&a.newRow.Spouse, "spouse", "", "Spouse, who must already be in the roster")
	f.StringVar(&a.newRow.PreviousSmall, "previous-small", "", "Who they gave a small gift to last time")
	f.StringVar(&a.newRow.PreviousLarge, "previous-large", "", "Who they gave a large gift to last time")
	return cmd
}

func (a *app) runAdd(cmd *cobra.Command, args []string) error {
	x, err := a.openExchange(args)
	if err != nil {
		return err
	}
	s, err := x.Settings()
	if err != nil {
		return err
	}
	path := x.RosterPath(s)

	row := a.newRow
	if row.Name == "" {
		if !tui.IsTerminal(os.Stdin) {
			return fmt.Errorf("--name is required when stdin is not a terminal")
		}
		var known []string
		if r, err := loader.Load(path); err == nil {
			for _, p := range r.People() {
				known = append(known, p.Name())
			}
		}
		if err := tui.PromptParticipant(&row, known); err != nil {
			return err
		}
	}
	if err := loader.Append(path, row); err != nil {
		return err
	}
	a.log().Debug("participant added", zap.String("name", row.Name), zap.String("roster", path))
	fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s\n", row.Name, path)
	return nil
}

// ---------------------------------------------------------------------------
// draw
// ---------------------------------------------------------------------------

func (a *app) drawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw [exchange]",
		Short: "Draw names and write the results",
		Long: `Load the roster, add the pairings of the most recent earlier draw to
everyone's history, and repeat randomized attempts until one assigns every
gift. The result goes to each configured output and is recorded as the
draw for --year.

Flags override the values in .secretsanta/settings.yaml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runDraw,
	}
	f := cmd.Flags()
	f.Uint64Var(&a.seed, "seed", 0, "Random seed; 0 seeds from the clock")
	f.IntVar(&a.maxAttempts, "max-attempts", 0, "Give up after this many attempts; 0 never gives up")
	f.IntVar(&a.workers, "workers", 1, "Attempts to run in parallel")
	f.IntVar(&a.year, "year", time.Now().Year(), "Year to record the draw under")
	f.StringSliceVarP(&a.outputs, "output", "o", nil, fmt.Sprintf("Outputs to write %v", report.Names()))
	f.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics here")
	f.BoolVarP(&a.interactive, "interactive", "i", false, "Show a progress view while drawing")
	f.BoolVar(&a.dryRun, "dry-run", false, "Do not record the draw in history")
	f.BoolVar(&a.noHistory, "no-history", false, "Ignore earlier draws")
	return cmd
}

// solver builds a solver from settings, letting changed flags win.
func (a *app) solver(cmd *cobra.Command, s *settings.Settings) *draw.Solver {
	sv := &draw.Solver{
		Seed:        s.Seed(),
		MaxAttempts: s.MaxAttempts(),
		Workers:     s.Workers(),
		Logger:      a.log(),
	}
	f := cmd.Flags()
	if f.Changed("seed") {
		sv.Seed = a.seed
	}
	if f.Changed("max-attempts") {
		sv.MaxAttempts = a.maxAttempts
	}
	if f.Changed("workers") {
		sv.Workers = a.workers
	}
	return sv
}

func (a *app) runDraw(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := a.log()

	x, err := a.openExchange(args)
	if err != nil {
		return err
	}
	s, err := x.Settings()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") && !a.verbose && s.Level() != a.logLevel {
		if l, err := logging.New(s.Level()); err == nil {
			a.logger, log = l, l
		}
	}

	outputs := s.Reporters()
	if len(a.outputs) > 0 {
		outputs = a.outputs
	}
	reporters, err := report.NewAll(outputs, report.Options{Out: cmd.OutOrStdout(), Dir: x.OutputDir()})
	if err != nil {
		return err
	}

	r, err := a.loadRoster(cmd, x, s)
	if errors.Is(err, loader.ErrTemplateCreated) {
		return nil
	}
	if err != nil {
		return err
	}

	store, err := x.OpenHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if !a.noHistory {
		prev, err := store.Latest(ctx, a.year)
		switch {
		case errors.Is(err, history.ErrNoHistory):
			log.Info("no earlier draw", zap.Int("year", a.year))
		case err != nil:
			return err
		default:
			n := history.ApplyTo(r, prev)
			log.Info("applied earlier draw",
				zap.Int("year", prev.Year),
				zap.Int("pairings", n))
		}
	}

	rec := metrics.New()
	observe := func(o draw.Outcome) {
		rec.Observe(o)
		if a.verbose {
			report.Attempt(cmd.ErrOrStderr(), o)
		}
	}
	sv := a.solver(cmd, s)

	interactive := a.interactive
	if interactive && !tui.IsTerminal(cmd.ErrOrStderr()) {
		log.Info("not a terminal, progress view disabled")
		interactive = false
	}

	var res *draw.Result
	if interactive {
		res, err = tui.Run(ctx, r.Len(), cmd.ErrOrStderr(), func(ctx context.Context, onAttempt func(draw.Outcome)) (*draw.Result, error) {
			sv.OnAttempt = func(o draw.Outcome) {
				observe(o)
				onAttempt(o)
			}
			return sv.Solve(ctx, r)
		})
	} else {
		sv.OnAttempt = observe
		res, err = sv.Solve(ctx, r)
	}

	metricsPath := a.metricsFile
	if metricsPath == "" && !cmd.Flags().Changed("metrics-file") {
		metricsPath = x.MetricsPath()
	}
	if metricsPath != "" {
		if werr := rec.WriteTextfile(metricsPath); werr != nil {
			log.Warn("metrics not written", zap.Error(werr))
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", x.RosterPath(s), err)
	}

	for _, rep := range reporters {
		if err := rep.Report(res); err != nil {
			return fmt.Errorf("output %s: %w", rep.Name(), err)
		}
	}

	if a.dryRun {
		log.Info("dry run, draw not recorded", zap.Stringer("draw_id", res.ID))
		return nil
	}
	if err := store.Record(ctx, a.year, res); err != nil {
		return err
	}
	log.Info("draw recorded",
		zap.Stringer("draw_id", res.ID),
		zap.Int("year", a.year),
		zap.Int("attempts", res.Attempts))
	return nil
}

// ---------------------------------------------------------------------------
// check
// ---------------------------------------------------------------------------

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [exchange]",
		Short: "Validate the roster without drawing",
		Long: `Read the roster and report its participants and couples. Malformed
rows, unknown names and conflicting spouses are reported with their line
numbers.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runCheck,
	}
}

func (a *app) runCheck(cmd *cobra.Command, args []string) error {
	x, err := a.openExchange(args)
	if err != nil {
		return err
	}
	s, err := x.Settings()
	if err != nil {
		return err
	}
	r, err := a.loadRoster(cmd, x, s)
	if errors.Is(err, loader.ErrTemplateCreated) {
		return nil
	}
	if err != nil {
		return err
	}

	couples, previous := 0, 0
	for _, p := range r.People() {
		if sp := p.Spouse(); sp != nil && p.Name() < sp.Name() {
			couples++
		}
		previous += len(p.PreviousGiftees())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d participants, %d couples, %d previous pairings\n",
		x.RosterPath(s), r.Len(), couples, previous)
	if r.Len() < 3 {
		fmt.Fprintln(cmd.OutOrStdout(), "warning: fewer than 3 participants cannot complete a draw")
	}
	return nil
}

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [exchange]",
		Short: "List recorded draws",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runHistory,
	}
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	x, err := a.openExchange(args)
	if err != nil {
		return err
	}
	store, err := x.OpenHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	draws, err := store.List(ctx)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(draws) == 0 {
		fmt.Fprintln(w, "no draws recorded")
		return nil
	}
	for _, d := range draws {
		fmt.Fprintf(w, "%d  %s  %s  attempts=%d seed=%d\n",
			d.Year, d.ID, d.CreatedAt.Format(time.DateOnly), d.Attempts, d.Seed)
	}
	return nil
}

// ---------------------------------------------------------------------------
// card
// ---------------------------------------------------------------------------

func (a *app) cardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card <giver> [exchange]",
		Short: "Show one giver's assignment from the last draw",
		Long: `Print who <giver> buys for, read from the card the cards output wrote.
Only that giver's recipients are shown.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: a.runCard,
	}
	cmd.Flags().BoolVar(&a.pretty, "pretty", false, "Render the whole card as formatted markdown")
	return cmd
}

func (a *app) runCard(cmd *cobra.Command, args []string) error {
	x, err := a.openExchange(args[1:])
	if err != nil {
		return err
	}
	card, err := report.ReadCard(report.CardPath(x.OutputDir(), args[0]))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no card for %q (run 'secretsanta draw -o cards' first)", args[0])
	}
	if err != nil {
		return err
	}
	if a.pretty {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
		if err != nil {
			return fmt.Errorf("markdown renderer: %w", err)
		}
		out, err := r.Render(card.Markdown())
		if err != nil {
			return fmt.Errorf("render card: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s gives a small gift to %s and a large gift to %s\n",
		card.Giver, card.Small, card.Large)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
