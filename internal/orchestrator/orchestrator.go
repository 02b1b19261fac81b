package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	slogmulti "github.com/samber/slog-multi"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/model"
	"github.com/xunlong/api/internal/store"
)

// ErrCancelled aborts a run between stages. The progress callback returns
// it when the task record has been cancelled underneath us.
var ErrCancelled = errors.New("task cancelled")

// ProgressFunc reports a stage-granular milestone. A non-nil return aborts
// the run before the next stage starts.
type ProgressFunc func(progress int, step string) error

// Orchestrator drives one task through the fixed six-stage pipeline,
// persisting every stage's artifact before the next stage runs. It is the
// only holder of in-flight state: stages receive the prior stage's output
// explicitly and never read artifacts back from disk.
type Orchestrator struct {
	store       *store.Store
	llm         *client.LLMClient
	search      *client.SearchClient
	concurrency int
}

// New creates an orchestrator.
func New(st *store.Store, llm *client.LLMClient, search *client.SearchClient, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Orchestrator{
		store:       st,
		llm:         llm,
		search:      search,
		concurrency: concurrency,
	}
}

// Run executes the pipeline for one claimed task and returns the final
// report. Stage failures propagate; artifacts written so far stay on disk
// for post-mortem.
func (o *Orchestrator) Run(ctx context.Context, task *model.Task, report ProgressFunc) (*model.FinalReport, error) {
	started := time.Now()

	project, err := o.store.CreateProjectID(task.ID, task.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	logger, closeLog := newExecutionLogger(project.Dir)
	defer closeLog()
	logger = logger.With("task", task.ID, "type", task.Type)
	logger.Info("run started", "query", task.Query)

	cfg := parseConfig(task)

	// Stage 1: decompose.
	plan, err := o.decompose(ctx, logger, task, cfg)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	if err := project.SaveStage(model.StageDecompose, plan); err != nil {
		return nil, err
	}
	logger.Info("stage complete", "stage", model.StageDecompose.Name(), "subtasks", len(plan.Subtasks))
	if err := report(model.StageDecompose.Progress(), "Decomposing query"); err != nil {
		return nil, err
	}

	// Stage 2: search.
	results, err := o.runSearch(ctx, logger, plan, cfg)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if err := project.SaveStage(model.StageSearch, results); err != nil {
		return nil, err
	}
	if err := project.SaveSearchDump(results.AllContent); err != nil {
		return nil, err
	}
	logger.Info("stage complete", "stage", model.StageSearch.Name(), "hits", results.TotalHits)
	if err := report(model.StageSearch.Progress(), "Collecting sources"); err != nil {
		return nil, err
	}

	// Stage 3: evaluate.
	evaluation, err := o.evaluate(ctx, logger, results)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if err := project.SaveStage(model.StageEvaluate, evaluation); err != nil {
		return nil, err
	}
	logger.Info("stage complete", "stage", model.StageEvaluate.Name(), "kept", evaluation.Kept, "dropped", evaluation.Dropped)
	if err := report(model.StageEvaluate.Progress(), "Evaluating sources"); err != nil {
		return nil, err
	}

	// Stage 4: analyze.
	analysis, err := o.analyze(ctx, logger, plan, evaluation)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	if err := project.SaveStage(model.StageAnalyze, analysis); err != nil {
		return nil, err
	}
	logger.Info("stage complete", "stage", model.StageAnalyze.Name(), "notes", len(analysis.Notes))
	if err := report(model.StageAnalyze.Progress(), "Analyzing findings"); err != nil {
		return nil, err
	}

	// Stage 5: synthesize.
	synthesis, err := o.synthesize(ctx, logger, task, cfg, plan, analysis, evaluation)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	synthesis.Metadata.GenerationTime = time.Since(started).Seconds()
	if err := project.SaveStage(model.StageSynthesize, synthesis); err != nil {
		return nil, err
	}
	logger.Info("stage complete", "stage", model.StageSynthesize.Name(), "words", synthesis.Metadata.WordCount)
	if err := report(model.StageSynthesize.Progress(), "Composing document"); err != nil {
		return nil, err
	}

	// Stage 6: finalize.
	final := &model.FinalReport{
		Synthesis:    *synthesis,
		OutputFormat: cfg.outputFormat,
	}
	if err := project.SaveFinal(final, task.Query); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	logger.Info("run complete", "elapsed", time.Since(started).String())
	if err := report(model.StageFinalize.Progress(), "Finalizing"); err != nil {
		return nil, err
	}
	return final, nil
}

// taskConfig is the union of the per-type configs, decoded once.
type taskConfig struct {
	report  model.ReportConfig
	fiction model.FictionConfig
	ppt     model.PPTConfig

	outputFormat model.OutputFormat
	maxResults   int
	searchDepth  model.SearchDepth
}

func parseConfig(task *model.Task) taskConfig {
	var cfg taskConfig
	cfg.outputFormat = model.OutputFormatMD
	cfg.maxResults = 5
	cfg.searchDepth = model.SearchDepthMedium

	switch task.Type {
	case model.TaskTypeReport:
		_ = json.Unmarshal(task.Config, &cfg.report)
		if cfg.report.OutputFormat != "" {
			cfg.outputFormat = cfg.report.OutputFormat
		}
		if cfg.report.MaxResults > 0 {
			cfg.maxResults = cfg.report.MaxResults
		}
		if cfg.report.SearchDepth != "" {
			cfg.searchDepth = cfg.report.SearchDepth
		}
	case model.TaskTypeFiction:
		_ = json.Unmarshal(task.Config, &cfg.fiction)
		if cfg.fiction.OutputFormat != "" {
			cfg.outputFormat = cfg.fiction.OutputFormat
		}
	case model.TaskTypePPT:
		_ = json.Unmarshal(task.Config, &cfg.ppt)
		cfg.outputFormat = model.OutputFormatHTML
	}
	return cfg
}

// newExecutionLogger builds the per-job logger: JSON lines into the
// project's execution log, fanned out to stderr for the operator.
func newExecutionLogger(projectDir string) (*slog.Logger, func()) {
	stderrHandler := slog.NewTextHandler(os.Stderr, nil)

	path := filepath.Join(projectDir, "execution_log.txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(stderrHandler), func() {}
	}
	fileHandler := slog.NewJSONHandler(file, nil)
	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	return logger, func() { _ = file.Close() }
}
