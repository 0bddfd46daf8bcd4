package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/streamkit/bytestream"
	apperrors "github.com/skillsenselab/streamkit/errors"
	"github.com/skillsenselab/streamkit/logger"
	"github.com/skillsenselab/streamkit/observability"
	"github.com/skillsenselab/streamkit/resilience"
	"github.com/skillsenselab/streamkit/security"
	"github.com/skillsenselab/streamkit/stream"
	"github.com/skillsenselab/streamkit/transform"
	"github.com/skillsenselab/streamkit/util"
	"github.com/skillsenselab/streamkit/validation"
)

// Run actions. The enum is closed: dispatch is an exhaustive switch and
// unknown names are rejected before a run starts.
const (
	ActionChunk       = "chunk"
	ActionMap         = "map"
	ActionFilter      = "filter"
	ActionReduce      = "reduce"
	ActionBatch       = "batch"
	ActionThrottle    = "throttle"
	ActionBuffer      = "buffer"
	ActionParallelMap = "parallelMap"
	ActionMerge       = "merge"
	ActionPipeline    = "pipeline"
	ActionAnalyze     = "analyze"
	ActionProcess     = "process"
	ActionCopy        = "copy"
)

// ActionNames lists every valid run action.
var ActionNames = []string{
	ActionChunk, ActionMap, ActionFilter, ActionReduce, ActionBatch,
	ActionThrottle, ActionBuffer, ActionParallelMap, ActionMerge,
	ActionPipeline, ActionAnalyze, ActionProcess, ActionCopy,
}

// Run statuses reported in the response envelope.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// RunRequest is the body of the run endpoints. Items feeds the array
// actions, Sources feeds merge, and Path/OutputPath feed the file actions.
type RunRequest struct {
	Action     string    `json:"action" validate:"required"`
	Items      []any     `json:"items,omitempty"`
	Sources    [][]any   `json:"sources,omitempty"`
	Path       string    `json:"path,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
	Params     RunParams `json:"params"`
}

// RunParams tunes how a run executes. Zero values fall back to the runner
// defaults where a default makes sense; actions that need a parameter
// (batch needs batchSize, map needs transform, ...) reject its absence.
type RunParams struct {
	ChunkSize   int    `json:"chunkSize,omitempty" validate:"omitempty,gte=1"`
	BatchSize   int    `json:"batchSize,omitempty" validate:"omitempty,gte=1"`
	BufferSize  int    `json:"bufferSize,omitempty" validate:"omitempty,gte=1"`
	ThrottleMs  int    `json:"throttleMs,omitempty" validate:"omitempty,gte=0"`
	Parallelism int    `json:"parallelism,omitempty" validate:"omitempty,gte=1,lte=64"`
	TimeoutMs   int    `json:"timeoutMs,omitempty" validate:"omitempty,gte=1"`
	Transform   string `json:"transform,omitempty"`
	Filter      string `json:"filter,omitempty"`
	Reducer     string `json:"reducer,omitempty"`
	// Initial seeds the reducer accumulator instead of the reducer's own
	// seed. Only reducers whose accumulator is their result support it.
	Initial any `json:"initial,omitempty"`
	// Key is the cipher key for the chacha20 byte transform.
	Key    string      `json:"key,omitempty"`
	Stages []StageSpec `json:"stages,omitempty" validate:"omitempty,dive"`
}

// StageSpec describes one stage of a pipeline run.
type StageSpec struct {
	Kind        string `json:"kind" validate:"required,oneof=map filter batch throttle buffer parallelMap"`
	Transform   string `json:"transform,omitempty"`
	Filter      string `json:"filter,omitempty"`
	ChunkSize   int    `json:"chunkSize,omitempty" validate:"omitempty,gte=1"`
	BatchSize   int    `json:"batchSize,omitempty" validate:"omitempty,gte=1"`
	BufferSize  int    `json:"bufferSize,omitempty" validate:"omitempty,gte=1"`
	ThrottleMs  int    `json:"throttleMs,omitempty" validate:"omitempty,gte=0"`
	Parallelism int    `json:"parallelism,omitempty" validate:"omitempty,gte=1,lte=64"`
}

// ChunkPayload is the wire form of a chunk.
type ChunkPayload struct {
	Index          int            `json:"index"`
	Data           []any          `json:"data"`
	IsComplete     bool           `json:"isComplete"`
	BytesProcessed int64          `json:"bytesProcessed,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func chunkPayload(c stream.Chunk[any]) ChunkPayload {
	return ChunkPayload{
		Index:          c.Index,
		Data:           c.Data,
		IsComplete:     c.IsComplete,
		BytesProcessed: c.BytesProcessed,
		Metadata:       c.Metadata,
	}
}

// RunResponse is the envelope both run endpoints report. A run that started
// always gets an envelope: Status records how it ended, and Error carries
// the failure or cancellation details. Faults detected before the run starts
// (validation, path security, the run limit) are returned as plain error
// responses instead.
type RunResponse struct {
	RunID      string               `json:"runId"`
	Action     string               `json:"action"`
	Status     string               `json:"status"`
	Chunks     []ChunkPayload       `json:"chunks,omitempty"`
	Result     any                  `json:"result,omitempty"`
	Stats      *bytestream.Stats    `json:"stats,omitempty"`
	DurationMs int64                `json:"durationMs"`
	Error      *apperrors.ErrorBody `json:"error,omitempty"`
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// MaxConcurrentRuns caps runs in flight across both endpoints.
	MaxConcurrentRuns int
	// DefaultChunkSize applies when a request omits params.chunkSize.
	DefaultChunkSize int
	// DefaultParallelism applies when a parallelMap omits params.parallelism.
	DefaultParallelism int
	// Retry governs transient retries inside parallelMap sub-batches and
	// file I/O. The zero value gets the resilience defaults.
	Retry resilience.RetryConfig
	// Roots is the allow-list for file actions. Nil refuses every file
	// action: no roots, no file access.
	Roots *security.Roots
	// Metrics records run metrics when set.
	Metrics *observability.RunMetrics
}

// Runner executes runs. It owns the concurrency ceiling, the file-path
// allow-list, and the per-run observation.
type Runner struct {
	cfg      RunnerConfig
	bulkhead *resilience.Bulkhead
	roots    *security.Roots
	metrics  *observability.RunMetrics
	log      *logger.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig, log *logger.Logger) *Runner {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 16
	}
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = 100
	}
	if cfg.DefaultParallelism <= 0 {
		cfg.DefaultParallelism = 4
	}
	runLog := log.WithComponent("runner")
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
			runLog.Debug("Retrying transient failure", map[string]interface{}{
				"attempt":         attempt,
				"backoff":         backoff.String(),
				logger.FieldError: err.Error(),
			})
		}
	}
	return &Runner{
		cfg: cfg,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "runs",
			MaxConcurrent: cfg.MaxConcurrentRuns,
		}),
		roots:   cfg.Roots,
		metrics: cfg.Metrics,
		log:     runLog,
	}
}

// Execute validates req and runs it to completion, collecting produced
// chunks into the envelope.
func (r *Runner) Execute(ctx context.Context, req RunRequest) (*RunResponse, error) {
	return r.execute(ctx, req, nil)
}

// ExecuteStream validates req and runs it, passing each produced chunk to
// emit as soon as it exists instead of collecting. The envelope describes
// the finished run; its Chunks field stays empty.
func (r *Runner) ExecuteStream(ctx context.Context, req RunRequest, emit func(ChunkPayload) error) (*RunResponse, error) {
	return r.execute(ctx, req, emit)
}

func (r *Runner) execute(ctx context.Context, req RunRequest, emit func(ChunkPayload) error) (*RunResponse, error) {
	if err := r.prepare(&req); err != nil {
		return nil, err
	}
	resp, err := resilience.ExecuteWithResult(ctx, r.bulkhead, func() (*RunResponse, error) {
		return r.run(ctx, req, emit), nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrBulkheadFull) || errors.Is(err, resilience.ErrBulkheadTimeout) {
			return nil, apperrors.RunLimitExceeded(r.bulkhead.MaxConcurrent())
		}
		return nil, apperrors.Wrap(err)
	}
	return resp, nil
}

// prepare fails fast: structural validation, the action enum, action
// requirements, named-function resolution, and path security all run before
// the bulkhead slot is taken or any iteration starts. It rewrites the
// request's paths to their validated resolved forms.
func (r *Runner) prepare(req *RunRequest) error {
	if err := validation.Validate(req); err != nil {
		return err
	}
	if !validAction(req.Action) {
		return apperrors.InvalidArgument("action",
			fmt.Sprintf("unknown action %q, valid actions: %s", req.Action, strings.Join(ActionNames, ", ")))
	}

	// Per-action requirements, reported in the same shape as the struct
	// tag errors above.
	v := validation.New()
	switch req.Action {
	case ActionMap, ActionParallelMap:
		v.Required("transform", req.Params.Transform)
	case ActionFilter:
		v.Required("filter", req.Params.Filter)
	case ActionReduce:
		v.Required("reducer", req.Params.Reducer)
	case ActionBatch:
		v.Min("batchSize", req.Params.BatchSize, 1)
	case ActionBuffer:
		v.Min("bufferSize", req.Params.BufferSize, 1)
	case ActionMerge:
		v.Custom(len(req.Sources) > 0, "sources", "requires at least one source")
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}

	switch {
	case req.Action == ActionReduce:
		if _, err := transform.NewReducer(req.Params.Reducer); err != nil {
			return err
		}
		if req.Params.Initial != nil {
			if _, err := reducerSeed(req.Params.Reducer, req.Params.Initial); err != nil {
				return err
			}
		}
	case isFileAction(req.Action):
		if err := r.resolvePaths(req); err != nil {
			return err
		}
		if req.Action == ActionProcess {
			if err := resolveByteFuncs(req.Params); err != nil {
				return err
			}
		}
	default:
		// Building the stream resolves every named function without
		// pulling a single chunk.
		if _, err := r.buildStream(*req); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) resolvePaths(req *RunRequest) error {
	if r.roots == nil {
		return apperrors.PathSecurity(req.Path, "no file roots configured")
	}
	if err := validation.Required("path", req.Path); err != nil {
		return err
	}
	resolved, err := r.roots.Validate(req.Path)
	if err != nil {
		return err
	}
	req.Path = resolved

	if req.Action == ActionAnalyze {
		return nil
	}
	if err := validation.Required("outputPath", req.OutputPath); err != nil {
		return err
	}
	out, err := r.roots.Validate(req.OutputPath)
	if err != nil {
		return err
	}
	req.OutputPath = out
	return nil
}

func resolveByteFuncs(p RunParams) error {
	if p.Transform != "" {
		if _, err := transform.Byte(p.Transform, p.Key); err != nil {
			return err
		}
	}
	if p.Filter != "" {
		if _, err := transform.ByteFilter(p.Filter); err != nil {
			return err
		}
	}
	return nil
}

// run executes a prepared request. It always returns an envelope: execution
// failures and cancellation are outcomes of the run, not of the request.
func (r *Runner) run(ctx context.Context, req RunRequest, emit func(ChunkPayload) error) *RunResponse {
	runID := uuid.New().String()
	ctx = logger.ContextWithRunID(ctx, runID)

	if req.Params.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Params.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	obs := observability.NewRunObservation(req.Action, runID, r.metrics)
	ctx, span := obs.Start(ctx)

	resp := &RunResponse{RunID: runID, Action: req.Action, Status: StatusCompleted}
	var chunks, bytes int64
	var err error

	switch {
	case req.Action == ActionReduce:
		resp.Result, err = r.runReduce(ctx, req)
	case isFileAction(req.Action):
		resp.Stats, err = r.runFile(ctx, req)
		if resp.Stats != nil {
			chunks = int64(resp.Stats.ChunkCount)
			bytes = resp.Stats.SizeBytes
		}
	default:
		chunks, bytes, err = r.runChunks(ctx, req, resp, emit)
	}
	resp.DurationMs = obs.Duration().Milliseconds()

	if err != nil {
		appErr := normalizeRunErr(req.Action, err)
		if appErr.Code == apperrors.ErrCodeCancelled {
			resp.Status = StatusCancelled
		} else {
			resp.Status = StatusFailed
		}
		body := appErr.ToResponse().Error
		resp.Error = &body
	}

	obs.End(ctx, span, resp.Status, chunks, bytes, err)
	r.logRun(ctx, resp, chunks)
	return resp
}

// runChunks drains the run's stream. With emit set each chunk is handed off
// as produced; otherwise chunks collect into the envelope. Chunks produced
// before a failure stay in the envelope alongside the error.
func (r *Runner) runChunks(ctx context.Context, req RunRequest, resp *RunResponse, emit func(ChunkPayload) error) (int64, int64, error) {
	s, err := r.buildStream(req)
	if err != nil {
		return 0, 0, err
	}
	var count, bytes int64
	err = stream.ForEach(ctx, s, func(_ context.Context, c stream.Chunk[any]) error {
		p := chunkPayload(c)
		count++
		bytes = c.BytesProcessed
		if emit != nil {
			return emit(p)
		}
		resp.Chunks = append(resp.Chunks, p)
		return nil
	})
	return count, bytes, err
}

// buildStream assembles the lazy stream for a chunk-producing action.
// Named functions resolve here, eagerly; no chunk is pulled.
func (r *Runner) buildStream(req RunRequest) (*stream.Stream[any], error) {
	chunkSize := r.chunkSize(req.Params)
	src := stream.FromSlice(req.Items, chunkSize)

	switch req.Action {
	case ActionChunk:
		return src, nil
	case ActionMap:
		fn, err := transform.Item(req.Params.Transform)
		if err != nil {
			return nil, err
		}
		return stream.Map(src, fn), nil
	case ActionFilter:
		pred, err := transform.Filter(req.Params.Filter)
		if err != nil {
			return nil, err
		}
		return stream.Filter(src, pred), nil
	case ActionBatch:
		return stream.BatchAny(src, req.Params.BatchSize), nil
	case ActionThrottle:
		return stream.Throttle(src, time.Duration(req.Params.ThrottleMs)*time.Millisecond), nil
	case ActionBuffer:
		return stream.BufferCount(src, req.Params.BufferSize), nil
	case ActionParallelMap:
		fn, err := transform.Item(req.Params.Transform)
		if err != nil {
			return nil, err
		}
		cfg := stream.ParallelMapConfig{
			ChunkSize:   chunkSize,
			Parallelism: r.parallelism(req.Params),
			Retry:       r.cfg.Retry,
		}
		return stream.ParallelMap(src, cfg, fn), nil
	case ActionMerge:
		sources := make([]*stream.Stream[any], len(req.Sources))
		for i, items := range req.Sources {
			sources[i] = stream.FromSlice(items, chunkSize)
		}
		return stream.Merge(sources...), nil
	case ActionPipeline:
		stages, err := r.buildStages(req.Params.Stages)
		if err != nil {
			return nil, err
		}
		return stream.Compose(src, stages...), nil
	}
	return nil, apperrors.InvalidArgument("action", req.Action+" does not produce a chunk stream")
}

func (r *Runner) buildStages(specs []StageSpec) ([]stream.Stage[any], error) {
	stages := make([]stream.Stage[any], 0, len(specs))
	for i, sp := range specs {
		stage, err := r.buildStage(sp)
		if err != nil {
			return nil, apperrors.Wrap(err).WithDetail("stageIndex", i)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func (r *Runner) buildStage(sp StageSpec) (stream.Stage[any], error) {
	switch sp.Kind {
	case ActionMap:
		fn, err := transform.Item(sp.Transform)
		if err != nil {
			return nil, err
		}
		return stream.MapStage[any](fn), nil
	case ActionFilter:
		pred, err := transform.Filter(sp.Filter)
		if err != nil {
			return nil, err
		}
		return stream.FilterStage[any](pred), nil
	case ActionBatch:
		if sp.BatchSize < 1 {
			return nil, apperrors.InvalidArgument("batchSize", "required for a batch stage")
		}
		return stream.BatchStage(sp.BatchSize), nil
	case ActionThrottle:
		return stream.ThrottleStage[any](time.Duration(sp.ThrottleMs) * time.Millisecond), nil
	case ActionBuffer:
		if sp.BufferSize < 1 {
			return nil, apperrors.InvalidArgument("bufferSize", "required for a buffer stage")
		}
		return stream.BufferStage[any](sp.BufferSize), nil
	case ActionParallelMap:
		fn, err := transform.Item(sp.Transform)
		if err != nil {
			return nil, err
		}
		cfg := stream.ParallelMapConfig{
			ChunkSize:   r.stageChunkSize(sp),
			Parallelism: r.stageParallelism(sp),
			Retry:       r.cfg.Retry,
		}
		return stream.ParallelMapStage[any](cfg, fn), nil
	}
	return nil, apperrors.InvalidArgument("kind", fmt.Sprintf("unknown stage kind %q", sp.Kind))
}

func (r *Runner) runReduce(ctx context.Context, req RunRequest) (any, error) {
	red, err := transform.NewReducer(req.Params.Reducer)
	if err != nil {
		return nil, err
	}
	acc := red.Init()
	if req.Params.Initial != nil {
		acc, err = reducerSeed(req.Params.Reducer, req.Params.Initial)
		if err != nil {
			return nil, err
		}
	}
	src := stream.FromSlice(req.Items, r.chunkSize(req.Params))
	acc, err = stream.Reduce(ctx, src, acc, red.Fold)
	if err != nil {
		return nil, err
	}
	return red.Finish(acc), nil
}

// reducerSeed checks a request-supplied initial accumulator against the
// reducer. mean keeps internal state, so it cannot be seeded.
func reducerSeed(name string, initial any) (any, error) {
	switch name {
	case "sum", "product", "min", "max", "count":
		f, ok := initial.(float64)
		if !ok {
			return nil, apperrors.InvalidArgument("initial", "must be a number for "+name)
		}
		return f, nil
	case "concat":
		s, ok := initial.(string)
		if !ok {
			return nil, apperrors.InvalidArgument("initial", "must be a string for concat")
		}
		return s, nil
	}
	return nil, apperrors.InvalidArgument("initial", "not supported for "+name)
}

func (r *Runner) runFile(ctx context.Context, req RunRequest) (*bytestream.Stats, error) {
	opts := bytestream.Options{ChunkSize: req.Params.ChunkSize, Retry: r.cfg.Retry}
	switch req.Action {
	case ActionAnalyze:
		return bytestream.Analyze(ctx, req.Path, opts)
	case ActionProcess:
		if req.Params.Transform != "" {
			fn, err := transform.Byte(req.Params.Transform, req.Params.Key)
			if err != nil {
				return nil, err
			}
			opts.Transform = fn
		}
		if req.Params.Filter != "" {
			pred, err := transform.ByteFilter(req.Params.Filter)
			if err != nil {
				return nil, err
			}
			opts.Filter = pred
		}
		return bytestream.ProcessToFile(ctx, req.Path, req.OutputPath, opts)
	case ActionCopy:
		return bytestream.CopyToFile(ctx, req.Path, req.OutputPath, opts)
	}
	return nil, apperrors.InvalidArgument("action", req.Action+" is not a file action")
}

func (r *Runner) logRun(ctx context.Context, resp *RunResponse, chunks int64) {
	fields := map[string]interface{}{
		logger.FieldRunID:    resp.RunID,
		logger.FieldAction:   resp.Action,
		logger.FieldStatus:   resp.Status,
		logger.FieldChunks:   chunks,
		logger.FieldDuration: resp.DurationMs,
	}
	if resp.Stats != nil {
		fields[logger.FieldBytes] = resp.Stats.SizeBytes
	}
	log := r.log.WithContext(ctx)
	switch resp.Status {
	case StatusCompleted:
		log.Info("Run completed", fields)
	case StatusCancelled:
		log.Warn("Run cancelled", fields)
	default:
		fields[logger.FieldError] = resp.Error.Message
		log.Error("Run failed", fields)
	}
}

func (r *Runner) chunkSize(p RunParams) int {
	if p.ChunkSize > 0 {
		return p.ChunkSize
	}
	return r.cfg.DefaultChunkSize
}

func (r *Runner) parallelism(p RunParams) int {
	if p.Parallelism > 0 {
		return p.Parallelism
	}
	return r.cfg.DefaultParallelism
}

func (r *Runner) stageChunkSize(sp StageSpec) int {
	if sp.ChunkSize > 0 {
		return sp.ChunkSize
	}
	return r.cfg.DefaultChunkSize
}

func (r *Runner) stageParallelism(sp StageSpec) int {
	if sp.Parallelism > 0 {
		return sp.Parallelism
	}
	return r.cfg.DefaultParallelism
}

func validAction(name string) bool {
	return util.StringInSlice(name, ActionNames)
}

func isFileAction(name string) bool {
	return name == ActionAnalyze || name == ActionProcess || name == ActionCopy
}

// normalizeRunErr shapes a run failure for the envelope: taxonomy errors
// pass through and raw context errors become the Cancelled outcome.
func normalizeRunErr(action string, err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	if apperrors.IsCancelled(err) {
		return apperrors.Cancelled(action).WithCause(err)
	}
	return apperrors.Internal(err)
}
