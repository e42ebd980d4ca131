package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/darwin/internal/config"
	"github.com/copyleftdev/darwin/internal/errors"
	"github.com/copyleftdev/darwin/internal/logging"
	"github.com/copyleftdev/darwin/internal/metrics"
	"github.com/copyleftdev/darwin/internal/optimization"
	"github.com/copyleftdev/darwin/internal/problems"
	"github.com/copyleftdev/darwin/internal/storage"
)

const persistTimeout = 5 * time.Second

// ArgumentsRequest overrides the configured default arguments. Unset fields
// keep the defaults.
type ArgumentsRequest struct {
	PopulationSize        *int     `json:"population_size,omitempty"`
	NumIterations         *int     `json:"num_iterations,omitempty"`
	MaximumMutationAmount *float64 `json:"maximum_mutation_amount,omitempty"`
	BreedingPoolSize      *int     `json:"breeding_pool_size,omitempty"`
	KillingPoolSize       *int     `json:"killing_pool_size,omitempty"`
	Goal                  string   `json:"goal,omitempty"`
	WithReplacement       *bool    `json:"with_replacement,omitempty"`
}

// StartRequest describes a run to start.
type StartRequest struct {
	Problem   string           `json:"problem"`
	Params    problems.Params  `json:"params"`
	Arguments ArgumentsRequest `json:"arguments"`
	// Seed makes the run reproducible. Zero picks one, which is reported
	// back in the run status.
	Seed int64 `json:"seed,omitempty"`
}

// RunStatus is the externally visible state of a run.
type RunStatus struct {
	storage.RunRecord
	Progress float64 `json:"progress"`
}

// runState tracks a run owned by this server. Fields are guarded by
// Server.runsMu.
type runState struct {
	record   storage.RunRecord
	progress float64
	cancel   context.CancelFunc
	started  time.Time
}

func (st *runState) status() RunStatus {
	rec := st.record
	rec.History = append([]optimization.GenerationStats(nil), rec.History...)
	return RunStatus{RunRecord: rec, Progress: st.progress}
}

// Option customizes a Server.
type Option func(*Server)

// WithStore persists runs in store instead of an in-memory store.
func WithStore(store storage.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithMetrics records run metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRegistry serves the problems in r instead of the built-in ones.
func WithRegistry(r *problems.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// Server implements the HTTP and JSON-RPC server for evolution runs.
// It manages runs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	engine   *zap.Logger
	registry *problems.Registry
	store    storage.Store
	metrics  *metrics.Metrics

	// slots bounds the number of concurrently executing runs.
	slots chan struct{}
	wg    sync.WaitGroup

	runs   map[string]*runState
	runsMu sync.RWMutex
}

// NewServer creates a new server instance with the given config and logger.
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		engine: logging.NewZapLogger(logger),
		slots:  make(chan struct{}, max(cfg.Evolution.MaxConcurrentRuns, 1)),
		runs:   make(map[string]*runState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = problems.Default()
	}
	if s.store == nil {
		s.store = storage.NewMemoryStore()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/problems", s.handleProblems)
		r.Post("/evolve", s.handleEvolve)
		r.Get("/runs", s.handleList)
		r.Get("/runs/{id}", s.handleStatus)
		r.Delete("/runs/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// arguments merges req over the configured defaults. The goal comes from
// the request, then GA_GOAL, then the problem.
func (s *Server) arguments(req ArgumentsRequest, natural optimization.Goal) (optimization.Arguments, error) {
	args := s.cfg.Arguments()
	if goal, ok := s.cfg.Goal(); ok {
		args.Goal = goal
	} else {
		args.Goal = natural
	}

	if req.PopulationSize != nil {
		args.PopulationSize = *req.PopulationSize
	}
	if req.NumIterations != nil {
		args.NumIterations = *req.NumIterations
	}
	if req.MaximumMutationAmount != nil {
		args.MaximumMutationAmount = *req.MaximumMutationAmount
	}
	if req.BreedingPoolSize != nil {
		args.BreedingPoolSize = *req.BreedingPoolSize
	}
	if req.KillingPoolSize != nil {
		args.KillingPoolSize = *req.KillingPoolSize
	}
	if req.WithReplacement != nil {
		args.WithReplacement = *req.WithReplacement
	}
	if req.Goal != "" {
		goal, err := optimization.ParseGoal(req.Goal)
		if err != nil {
			return args, errors.Wrap(err, "invalid goal").WithCode(errors.CodeInvalidArgument)
		}
		args.Goal = goal
	}

	args = args.Normalize()
	return args, args.Validate()
}

// startRun validates req, builds the run and starts it in the background.
func (s *Server) startRun(req StartRequest) (RunStatus, error) {
	const op = "startRun"

	if req.Problem == "" {
		return RunStatus{}, errors.New(errors.CodeInvalidArgument, "problem is required").WithOperation(op)
	}
	problem, err := s.registry.Get(req.Problem)
	if err != nil {
		return RunStatus{}, errors.Wrap(err, "cannot start run").WithOperation(op)
	}

	args, err := s.arguments(req.Arguments, problem.Goal)
	if err != nil {
		return RunStatus{}, errors.Wrap(err, "invalid arguments").WithOperation(op)
	}

	seed := req.Seed
	if seed == 0 {
		seed = s.cfg.Evolution.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	params, err := json.Marshal(req.Params)
	if err != nil {
		return RunStatus{}, errors.Wrap(err, "encoding params").WithOperation(op)
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	state := &runState{
		record: storage.RunRecord{
			ID:        id,
			Problem:   problem.Name,
			Params:    params,
			Arguments: args,
			Seed:      seed,
			Status:    storage.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}

	runner, err := s.registry.Build(problem.Name, problems.Options{
		Arguments: args,
		Params:    req.Params,
		Seed:      seed,
		Logger:    s.engine.With(zap.String("run_id", id), zap.String("problem", problem.Name)),
		Observer:  s.observe(ctx, state),
	})
	if err != nil {
		cancel()
		return RunStatus{}, errors.Wrap(err, "cannot build run").WithOperation(op)
	}

	select {
	case s.slots <- struct{}{}:
	default:
		cancel()
		return RunStatus{}, errors.Errorf(errors.CodeUnavailable,
			"too many concurrent runs (limit %d)", cap(s.slots)).WithOperation(op)
	}

	s.runsMu.Lock()
	s.runs[id] = state
	status := state.status()
	s.runsMu.Unlock()

	s.persist(status.RunRecord)
	s.metrics.RunStarted(problem.Name)
	s.logger.Info("Run started", map[string]interface{}{
		"run_id":     id,
		"problem":    problem.Name,
		"seed":       seed,
		"population": args.PopulationSize,
		"iterations": args.NumIterations,
		"goal":       args.Goal.String(),
	})

	s.wg.Add(1)
	go s.execute(state, runner)

	return status, nil
}

// observe returns the per-generation hook of a run. It stops the run once
// ctx is cancelled.
func (s *Server) observe(ctx context.Context, state *runState) func(optimization.GenerationStats) error {
	return func(st optimization.GenerationStats) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.runsMu.Lock()
		rec := &state.record
		rec.Generation = st.Generation
		if st.Size > 0 {
			rec.History = append(rec.History, st)
			rec.BestFitness = st.Best
			rec.PopulationSize = st.Size
		}
		if n := rec.Arguments.NumIterations; n > 0 {
			state.progress = float64(st.Generation) / float64(n)
		}
		rec.UpdatedAt = time.Now().UTC()
		problem := rec.Problem
		s.runsMu.Unlock()

		s.metrics.Generation(problem, st.Best)
		return nil
	}
}

// execute runs the evolution and records its outcome.
func (s *Server) execute(state *runState, runner problems.Runner) {
	defer s.wg.Done()
	defer func() { <-s.slots }()
	defer state.cancel()

	s.runsMu.Lock()
	state.started = time.Now()
	state.record.Status = storage.StatusRunning
	state.record.UpdatedAt = time.Now().UTC()
	running := state.status()
	s.runsMu.Unlock()
	s.persist(running.RunRecord)

	outcome, err := runner.Run()

	var organism json.RawMessage
	if err == nil {
		organism, err = json.Marshal(outcome.BestOrganism)
	}

	s.runsMu.Lock()
	rec := &state.record
	switch {
	case err == nil:
		rec.Status = storage.StatusCompleted
		rec.BestFitness = outcome.BestFitness
		rec.BestOrganism = organism
		rec.PopulationSize = outcome.PopulationSize
		state.progress = 1
	case stderrors.Is(err, context.Canceled):
		rec.Status = storage.StatusCancelled
	default:
		rec.Status = storage.StatusFailed
		rec.Error = err.Error()
	}
	rec.UpdatedAt = time.Now().UTC()
	final := state.status()
	elapsed := time.Since(state.started)
	s.runsMu.Unlock()

	s.persist(final.RunRecord)
	s.metrics.RunFinished(final.Problem, final.Status, elapsed)

	fields := map[string]interface{}{
		"run_id":       final.ID,
		"status":       final.Status,
		"generation":   final.Generation,
		"best_fitness": final.BestFitness,
		"duration":     elapsed.String(),
	}
	if err != nil && final.Status == storage.StatusFailed {
		fields["error"] = err.Error()
		s.logger.Error("Run failed", fields)
		return
	}
	s.logger.Info("Run finished", fields)
}

func (s *Server) persist(rec storage.RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.store.SaveRun(ctx, rec); err != nil {
		s.logger.Error("Failed to persist run", map[string]interface{}{
			"run_id": rec.ID,
			"status": rec.Status,
			"error":  err.Error(),
		})
	}
}

// runStatus returns the live state of a run, falling back to the store for
// runs this process no longer tracks.
func (s *Server) runStatus(ctx context.Context, id string) (RunStatus, error) {
	s.runsMu.RLock()
	state, ok := s.runs[id]
	var status RunStatus
	if ok {
		status = state.status()
	}
	s.runsMu.RUnlock()
	if ok {
		return status, nil
	}

	rec, found, err := s.store.GetRun(ctx, id)
	if err != nil {
		return RunStatus{}, errors.Wrapf(err, "loading run %s", id).WithOperation("runStatus")
	}
	if !found {
		return RunStatus{}, errors.Errorf(errors.CodeNotFound, "run %s not found", id).WithOperation("runStatus")
	}
	progress := 0.0
	if rec.Status == storage.StatusCompleted {
		progress = 1
	}
	return RunStatus{RunRecord: rec, Progress: progress}, nil
}

// listRuns returns every stored run, with live state for runs in progress.
func (s *Server) listRuns(ctx context.Context) ([]RunStatus, error) {
	records, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing runs").WithOperation("listRuns")
	}

	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	out := make([]RunStatus, 0, len(records))
	for _, rec := range records {
		if state, ok := s.runs[rec.ID]; ok {
			out = append(out, state.status())
			continue
		}
		out = append(out, RunStatus{RunRecord: rec})
	}
	return out, nil
}

// cancelRun asks a run to stop. The run reaches the cancelled state at its
// next generation boundary.
func (s *Server) cancelRun(ctx context.Context, id string) (RunStatus, error) {
	s.runsMu.RLock()
	state, ok := s.runs[id]
	var status RunStatus
	if ok {
		status = state.status()
	}
	s.runsMu.RUnlock()

	if !ok {
		// Known only to the store: it finished before this process started.
		if _, err := s.runStatus(ctx, id); err != nil {
			return RunStatus{}, err
		}
		return RunStatus{}, errors.Errorf(errors.CodeConflict, "run %s is not active", id).WithOperation("cancelRun")
	}
	if status.Finished() {
		return RunStatus{}, errors.Errorf(errors.CodeConflict,
			"cannot cancel run with status: %s", status.Status).WithOperation("cancelRun")
	}

	state.cancel()
	s.logger.Info("Run cancellation requested", map[string]interface{}{"run_id": id})
	return status, nil
}

// Wait blocks until every started run has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Close cancels all running runs and waits for them to record their final
// state.
func (s *Server) Close() error {
	s.runsMu.RLock()
	for _, state := range s.runs {
		state.cancel()
	}
	s.runsMu.RUnlock()

	s.wg.Wait()
	return nil
}
