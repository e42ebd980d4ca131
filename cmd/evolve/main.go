package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/darwin/internal/config"
	"github.com/copyleftdev/darwin/internal/logging"
	"github.com/copyleftdev/darwin/internal/optimization"
	"github.com/copyleftdev/darwin/internal/problems"
	"github.com/copyleftdev/darwin/internal/storage"
)

const defaultDBPath = "data/darwin.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], stdout, stderr)
	case "problems":
		return runProblems(args[1:], stdout)
	case "runs":
		return runRuns(ctx, args[1:], stdout)
	case "show":
		return runShow(ctx, args[1:], stdout)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evolve <run|problems|runs|show> [flags]", msg)
}

func runRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defaults := cfg.Arguments()
	dsn := cfg.Database.DSN
	if dsn == "" {
		dsn = defaultDBPath
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	problemName := fs.String("problem", "onemax", "problem name (see `evolve problems`)")
	length := fs.Int("length", 0, "bit-string length for onemax (0 uses the problem default)")
	target := fs.String("target", "", "target bit string for the target problem")
	dims := fs.Int("dims", 0, "dimensions for real-vector problems (0 uses the problem default)")
	lo := fs.Float64("min", 0, "lower coordinate bound for real-vector problems")
	hi := fs.Float64("max", 0, "upper coordinate bound for real-vector problems")
	selector := fs.String("selector", "", "selection scheme: proportionate|tournament (empty uses proportionate)")
	tournamentSize := fs.Int("tournament-size", 0, "tournament size (0 uses the default)")
	population := fs.Int("pop", defaults.PopulationSize, "population size")
	iterations := fs.Int("iterations", defaults.NumIterations, "generation count")
	mutation := fs.Float64("mutation", defaults.MaximumMutationAmount, "maximum mutation amount")
	breedingPool := fs.Int("breeding-pool", defaults.BreedingPoolSize, "parents selected per generation (0 means pop/10)")
	killingPool := fs.Int("killing-pool", defaults.KillingPoolSize, "organisms removed per generation (0 means breeding-pool)")
	goalName := fs.String("goal", cfg.Evolution.Goal, "maximize|minimize (empty uses the problem's goal)")
	withReplacement := fs.Bool("with-replacement", defaults.WithReplacement, "select breeding parents with replacement")
	seed := fs.Int64("seed", cfg.Evolution.Seed, "rng seed (0 picks one)")
	storeKind := fs.String("store", "", "persist the run: memory|sqlite (empty disables)")
	dbPath := fs.String("db-path", dsn, "sqlite database path")
	history := fs.Bool("history", false, "include per-generation statistics in the output")
	logLevel := fs.String("log-level", cfg.Logging.Level, "log level for progress on stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := logging.NewLogger(&logging.Config{Level: *logLevel, Format: logging.FormatText, Output: "stderr"})
	if err != nil {
		return err
	}

	problem, err := problems.Default().Get(*problemName)
	if err != nil {
		return err
	}

	runArgs := optimization.Arguments{
		PopulationSize:        *population,
		NumIterations:         *iterations,
		MaximumMutationAmount: *mutation,
		BreedingPoolSize:      *breedingPool,
		KillingPoolSize:       *killingPool,
		Goal:                  problem.Goal,
		WithReplacement:       *withReplacement,
	}
	if *goalName != "" {
		if runArgs.Goal, err = optimization.ParseGoal(*goalName); err != nil {
			return err
		}
	}
	runArgs = runArgs.Normalize()
	if err := runArgs.Validate(); err != nil {
		return err
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	params := problems.Params{
		Length:         *length,
		Target:         *target,
		Dimensions:     *dims,
		Min:            *lo,
		Max:            *hi,
		Selector:       *selector,
		TournamentSize: *tournamentSize,
	}

	var store storage.Store
	if *storeKind != "" {
		// The store outlives an interrupt so the cancelled state is recorded.
		if store, err = openStore(context.WithoutCancel(ctx), *storeKind, *dbPath); err != nil {
			return err
		}
		defer store.Close()
	}

	runner, err := problems.Default().Build(problem.Name, problems.Options{
		Arguments: runArgs,
		Params:    params,
		Seed:      *seed,
		Logger:    logging.NewZapLogger(logger).With(zap.String("problem", problem.Name)),
		Observer: func(optimization.GenerationStats) error {
			return ctx.Err()
		},
	})
	if err != nil {
		return err
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec := storage.RunRecord{
		ID:        fmt.Sprintf("cli-%d", now.UnixNano()),
		Problem:   problem.Name,
		Params:    rawParams,
		Arguments: runArgs,
		Seed:      *seed,
		Status:    storage.StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	started := time.Now()
	outcome, runErr := runner.Run()
	logger.Info("Run finished", map[string]interface{}{
		"problem":  problem.Name,
		"seed":     *seed,
		"duration": time.Since(started).String(),
	})

	if store != nil {
		if err := saveOutcome(store, rec, outcome, runErr); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	if !*history {
		outcome.History = nil
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Problem string `json:"problem"`
		Seed    int64  `json:"seed"`
		*problems.Outcome
	}{problem.Name, *seed, outcome})
}

func openStore(ctx context.Context, kind, path string) (storage.Store, error) {
	store, err := storage.NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init %s store: %w", kind, err)
	}
	return store, nil
}

// saveOutcome records the final state of a CLI run. It uses a fresh context
// so interrupted runs are still recorded.
func saveOutcome(store storage.Store, rec storage.RunRecord, outcome *problems.Outcome, runErr error) error {
	switch {
	case runErr == nil:
		organism, err := json.Marshal(outcome.BestOrganism)
		if err != nil {
			return err
		}
		rec.Status = storage.StatusCompleted
		rec.Generation = outcome.Iterations
		rec.BestFitness = outcome.BestFitness
		rec.BestOrganism = organism
		rec.PopulationSize = outcome.PopulationSize
		rec.History = outcome.History
	case errors.Is(runErr, context.Canceled):
		rec.Status = storage.StatusCancelled
	default:
		rec.Status = storage.StatusFailed
		rec.Error = runErr.Error()
	}
	rec.UpdatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return store.SaveRun(ctx, rec)
}

func runProblems(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("problems", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit problems as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry := problems.Default()
	type problemItem struct {
		Name        string            `json:"name"`
		Goal        optimization.Goal `json:"goal"`
		Description string            `json:"description"`
	}
	items := make([]problemItem, 0)
	for _, name := range registry.Names() {
		p, err := registry.Get(name)
		if err != nil {
			return err
		}
		items = append(items, problemItem{Name: p.Name, Goal: p.Goal, Description: p.Description})
	}

	if *jsonOut {
		return json.NewEncoder(stdout).Encode(items)
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGOAL\tDESCRIPTION")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.Name, item.Goal, item.Description)
	}
	return w.Flush()
}

func runRuns(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	limit := fs.Int("limit", 20, "max runs to list, most recent last")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	store, err := openStore(ctx, "sqlite", *dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) > *limit {
		runs = runs[len(runs)-*limit:]
	}

	if *jsonOut {
		if runs == nil {
			runs = []storage.RunRecord{}
		}
		return json.NewEncoder(stdout).Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROBLEM\tSTATUS\tGENERATION\tBEST\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%g\t%s\n",
			r.ID, r.Problem, r.Status, r.Generation, r.BestFitness, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runShow(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	id := fs.String("id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("show requires --id")
	}

	store, err := openStore(ctx, "sqlite", *dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, ok, err := store.GetRun(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run not found: %s", *id)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
