package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/metrics"
	"github.com/trendwatch/trendwatch/internal/models"
	"github.com/trendwatch/trendwatch/internal/trends"
)

// CandidateSelector supplies approved candidates for a run and records their
// consumption. Satisfied by the candidate manager.
type CandidateSelector interface {
	SelectApproved(ctx context.Context, limit int) ([]models.Candidate, error)
	MarkQueried(ctx context.Context, id string, at time.Time) error
}

// ResultSink receives every completed task for downstream aggregation.
// Satisfied by the trend aggregator.
type ResultSink interface {
	Record(ctx context.Context, task models.Task) error
}

// Orchestrator executes keyword-research runs: it assembles the task set from
// root keywords and approved candidates, dispatches tasks level by level
// through a bounded worker pool, expands rising keywords breadth-first up to
// the discovery depth limit, and enforces the cost budget with two-phase
// reservations.
type Orchestrator struct {
	repo      RunRepository
	probe     trends.Probe
	selector  CandidateSelector
	sink      ResultSink
	cfg       config.RunConfig
	logger    *slog.Logger
	collector *metrics.Collector
	now       func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a run orchestrator.
func New(repo RunRepository, probe trends.Probe, selector CandidateSelector, sink ResultSink, cfg config.RunConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		probe:    probe,
		selector: selector,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetCollector wires the optional metrics collector.
func (o *Orchestrator) SetCollector(c *metrics.Collector) {
	o.collector = c
}

// SetClock overrides the time source for tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// StartRun creates a queued run and its initial task set: one task per root
// keyword, then up to MaxCandidates approved candidates in selection order,
// each marked queried so no later run picks it up again. Execution is a
// separate step.
func (o *Orchestrator) StartRun(ctx context.Context, trigger string, rootKeywords []string, opts models.RunOptions) (*models.Run, error) {
	if len(rootKeywords) == 0 {
		rootKeywords = o.cfg.RootKeywords
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = o.cfg.MaxCandidates
	}
	if opts.CostBudget == 0 {
		opts.CostBudget = o.cfg.CostBudget
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = o.cfg.Concurrency
	}
	if opts.Locale == "" {
		opts.Locale = o.cfg.Locale
	}
	if opts.Timeframe == "" {
		opts.Timeframe = o.cfg.Timeframe
	}

	now := o.now()
	run := models.Run{
		ID:            uuid.NewString(),
		TriggeredAt:   now,
		Status:        models.RunStatusQueued,
		TriggerSource: trigger,
		RootKeywords:  rootKeywords,
		Metadata:      opts,
	}

	if err := o.repo.CreateRun(ctx, run); err != nil {
		return nil, models.NewStoreError("create run", err)
	}

	seen := make(map[string]struct{})
	var tasks []models.Task

	for _, keyword := range rootKeywords {
		keyword = strings.TrimSpace(keyword)
		key := strings.ToLower(keyword)
		if keyword == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tasks = append(tasks, o.newTask(run, keyword, models.TaskMetadata{
			Source:      models.CandidateSourceRoot,
			RootKeyword: keyword,
		}))
	}

	selected, err := o.selector.SelectApproved(ctx, opts.MaxCandidates)
	if err != nil {
		return nil, err
	}
	for _, candidate := range selected {
		key := strings.ToLower(candidate.Term)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tasks = append(tasks, o.newTask(run, candidate.Term, models.TaskMetadata{
			Source:      candidate.Source,
			CandidateID: candidate.ID,
			RootKeyword: candidate.Term,
		}))
		if err := o.selector.MarkQueried(ctx, candidate.ID, now); err != nil {
			return nil, err
		}
	}

	for _, task := range tasks {
		if err := o.repo.CreateTask(ctx, task); err != nil {
			return nil, models.NewStoreError("create task", err)
		}
	}

	run.TaskCounts = models.TaskCounts{Total: len(tasks), Queued: len(tasks)}
	if err := o.repo.UpdateRun(ctx, run); err != nil {
		return nil, models.NewStoreError("update run", err)
	}

	if o.collector != nil {
		o.collector.RecordRunStarted()
	}

	o.logger.Info("run created",
		"run_id", run.ID,
		"trigger", trigger,
		"roots", len(rootKeywords),
		"candidates", len(tasks)-len(rootKeywords),
		"tasks", len(tasks),
	)

	return &run, nil
}

func (o *Orchestrator) newTask(run models.Run, keyword string, meta models.TaskMetadata) models.Task {
	return models.Task{
		TaskID:    uuid.NewString(),
		RunID:     run.ID,
		Status:    models.TaskStatusQueued,
		Keyword:   keyword,
		Locale:    run.Metadata.Locale,
		Timeframe: run.Metadata.Timeframe,
		PostedAt:  o.now(),
		Metadata:  meta,
		Request: &models.TrendQuery{
			Keyword:   keyword,
			Locale:    run.Metadata.Locale,
			Timeframe: run.Metadata.Timeframe,
		},
	}
}

// Execute drives a queued run to a terminal state. Tasks are processed
// breadth-first by discovery depth: the whole of depth N finishes before any
// depth N+1 task starts, so rising-keyword expansion can never recurse
// unboundedly. Returns once the run is terminal.
func (o *Orchestrator) Execute(ctx context.Context, runID string) error {
	run, err := o.repo.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != models.RunStatusQueued {
		return fmt.Errorf("run %s is %s, not queued", runID, run.Status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.registerCancel(runID, cancel)
	defer o.unregisterCancel(runID)

	if err := o.transition(ctx, run, models.RunStatusRunning); err != nil {
		return err
	}

	ledger := newBudgetLedger(run.Metadata.CostBudget)
	estimate := o.cfg.CostPerTask
	if estimate <= 0 {
		estimate = 1.0
	}
	maxDepth := o.cfg.MaxDiscoveryDepth

	seen := make(map[string]struct{})
	tasks, err := o.repo.ListTasks(ctx, runID)
	if err != nil {
		return models.NewStoreError("list tasks", err)
	}
	for _, task := range tasks {
		seen[strings.ToLower(task.Keyword)] = struct{}{}
	}

	exhausted := false
	sawError := false

	for depth := 0; depth <= maxDepth && !exhausted; depth++ {
		level := o.queuedAtDepth(tasks, depth)
		if len(level) == 0 {
			continue
		}
		if runCtx.Err() != nil {
			break
		}

		completed, levelErrored, levelExhausted := o.dispatchLevel(runCtx, run, level, ledger, estimate)
		exhausted = levelExhausted
		if levelErrored {
			sawError = true
			if run.Status == models.RunStatusRunning {
				if err := o.transition(ctx, run, models.RunStatusRunningWithErrors); err != nil {
					o.logger.Warn("run status update failed", "run_id", runID, "error", err)
				}
			}
		}

		// Expansion: completed tasks below the depth limit seed the next level.
		if depth < maxDepth {
			for _, parent := range completed {
				o.expand(ctx, *run, parent, seen)
			}
		}

		tasks, err = o.repo.ListTasks(ctx, runID)
		if err != nil {
			return models.NewStoreError("list tasks", err)
		}
	}

	if runCtx.Err() != nil {
		tasks = o.failQueued(ctx, runID, tasks, "run cancelled")
		sawError = true
	}

	counts := countTasks(tasks)
	run.TaskCounts = counts
	run.CostTotal = ledger.Spent()

	final := counts.RollUp()
	if err := o.transition(ctx, run, final); err != nil {
		return err
	}

	o.logger.Info("run finished",
		"run_id", runID,
		"status", final,
		"total", counts.Total,
		"completed", counts.Completed,
		"queued", counts.Queued,
		"errors", counts.Error,
		"cost", run.CostTotal,
		"had_errors", sawError,
	)

	return nil
}

// dispatchLevel runs one depth level through the bounded worker pool. Budget
// reservation happens sequentially in the dispatch loop; once a reservation is
// refused no further task in the run is dispatched.
func (o *Orchestrator) dispatchLevel(ctx context.Context, run *models.Run, level []models.Task, ledger *budgetLedger, estimate float64) (completed []models.Task, sawError, exhausted bool) {
	concurrency := run.Metadata.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, concurrency)
	)

	for _, task := range level {
		// Acquire a pool slot before the cancellation and budget checks so
		// both observe the state left by every previously dispatched task.
		sem <- struct{}{}
		if ctx.Err() != nil {
			<-sem
			break
		}
		if !ledger.Reserve(estimate) {
			<-sem
			exhausted = true
			o.logger.Warn("cost budget exhausted, leaving remaining tasks queued",
				"run_id", run.ID, "spent", ledger.Spent(), "budget", run.Metadata.CostBudget)
			break
		}

		wg.Add(1)
		go func(task models.Task) {
			defer wg.Done()
			defer func() { <-sem }()

			done, ok := o.executeTask(ctx, task, ledger, estimate)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				completed = append(completed, done)
			} else {
				sawError = true
			}
		}(task)
	}

	wg.Wait()
	return completed, sawError, exhausted
}

// executeTask measures one keyword. In-flight tasks are shielded from run
// cancellation and finish naturally under their own timeout.
func (o *Orchestrator) executeTask(runCtx context.Context, task models.Task, ledger *budgetLedger, estimate float64) (models.Task, bool) {
	ctx := context.WithoutCancel(runCtx)

	task.Status = models.TaskStatusRunning
	if err := o.repo.UpdateTask(ctx, task); err != nil {
		o.logger.Error("task update failed", "task_id", task.TaskID, "error", err)
	}

	timeout := o.cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := o.probe.Measure(taskCtx, *task.Request)
	finished := o.now()
	task.CompletedAt = &finished

	if err != nil {
		ledger.Release(estimate)
		task.Status = models.TaskStatusError
		task.ErrorMessage = err.Error()
		if updateErr := o.repo.UpdateTask(ctx, task); updateErr != nil {
			o.logger.Error("task update failed", "task_id", task.TaskID, "error", updateErr)
		}
		if o.collector != nil {
			o.collector.RecordTaskFinished(string(models.TaskStatusError), 0)
		}
		o.logger.Warn("task failed", "task_id", task.TaskID, "keyword", task.Keyword, "error", err)
		return task, false
	}

	ledger.Commit(estimate, result.Cost)
	task.Status = models.TaskStatusCompleted
	task.Result = result
	task.Cost = &result.Cost
	if err := o.repo.UpdateTask(ctx, task); err != nil {
		o.logger.Error("task update failed", "task_id", task.TaskID, "error", err)
	}
	if o.collector != nil {
		o.collector.RecordTaskFinished(string(models.TaskStatusCompleted), result.Cost)
	}

	if o.sink != nil {
		if err := o.sink.Record(ctx, task); err != nil {
			o.logger.Warn("result sink rejected task", "task_id", task.TaskID, "error", err)
		}
	}

	return task, true
}

// expand enqueues child tasks for a completed parent's rising queries. Only
// rising-sourced parents seed children; root-keyword tasks never expand.
// Keywords already present anywhere in the run are skipped.
func (o *Orchestrator) expand(ctx context.Context, run models.Run, parent models.Task, seen map[string]struct{}) {
	if parent.Metadata.Source != models.CandidateSourceRising {
		return
	}
	if parent.Result == nil {
		return
	}
	for _, rising := range parent.Result.RisingQueries {
		rising = strings.TrimSpace(rising)
		key := strings.ToLower(rising)
		if rising == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		child := o.newTask(run, rising, models.TaskMetadata{
			Source:         models.CandidateSourceRising,
			RootKeyword:    parent.Metadata.RootKeyword,
			DiscoveryDepth: parent.Metadata.DiscoveryDepth + 1,
			ParentTaskID:   parent.TaskID,
		})
		if err := o.repo.CreateTask(ctx, child); err != nil {
			o.logger.Error("child task create failed", "run_id", run.ID, "keyword", rising, "error", err)
			continue
		}
		o.logger.Debug("rising keyword enqueued",
			"run_id", run.ID,
			"keyword", rising,
			"depth", child.Metadata.DiscoveryDepth,
			"parent", parent.TaskID,
		)
	}
}

// failQueued marks every still-queued task as errored, used on cancellation.
func (o *Orchestrator) failQueued(ctx context.Context, runID string, tasks []models.Task, reason string) []models.Task {
	for i, task := range tasks {
		if task.Status != models.TaskStatusQueued {
			continue
		}
		now := o.now()
		task.Status = models.TaskStatusError
		task.ErrorMessage = reason
		task.CompletedAt = &now
		if err := o.repo.UpdateTask(ctx, task); err != nil {
			o.logger.Error("task update failed", "task_id", task.TaskID, "error", err)
			continue
		}
		tasks[i] = task
	}
	return tasks
}

// Cancel requests cancellation of an executing run. Queued tasks are marked
// errored; in-flight tasks finish naturally.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[runID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s is not executing", runID)
	}
	cancel()
	o.logger.Info("run cancellation requested", "run_id", runID)
	return nil
}

// GetRun returns a run with its tasks.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (*models.Run, []models.Task, error) {
	run, err := o.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := o.repo.ListTasks(ctx, runID)
	if err != nil {
		return nil, nil, models.NewStoreError("list tasks", err)
	}
	return run, tasks, nil
}

// ListRuns returns recent runs newest-first.
func (o *Orchestrator) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	return o.repo.ListRuns(ctx, limit)
}

func (o *Orchestrator) transition(ctx context.Context, run *models.Run, next models.RunStatus) error {
	if !run.Status.CanTransition(next) {
		return fmt.Errorf("invalid run transition %s -> %s", run.Status, next)
	}
	run.Status = next
	if err := o.repo.UpdateRun(ctx, *run); err != nil {
		return models.NewStoreError("update run", err)
	}
	return nil
}

func (o *Orchestrator) registerCancel(runID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[runID] = cancel
}

func (o *Orchestrator) unregisterCancel(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, runID)
}

func (o *Orchestrator) queuedAtDepth(tasks []models.Task, depth int) []models.Task {
	var out []models.Task
	for _, task := range tasks {
		if task.Status == models.TaskStatusQueued && task.Metadata.DiscoveryDepth == depth {
			out = append(out, task)
		}
	}
	return out
}

func countTasks(tasks []models.Task) models.TaskCounts {
	counts := models.TaskCounts{Total: len(tasks)}
	for _, task := range tasks {
		switch task.Status {
		case models.TaskStatusCompleted:
			counts.Completed++
		case models.TaskStatusError:
			counts.Error++
		case models.TaskStatusQueued:
			counts.Queued++
		}
	}
	return counts
}
