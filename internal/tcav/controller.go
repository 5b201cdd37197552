package tcav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"tcav-panel/internal/latest"
	"tcav-panel/pkg/api"
)

const (
	AllSubsets    = "all"
	MinSubsetSize = 2

	// Results with a p-value at or above this are dropped. The intended cutoff
	// was 0.05; 0.5 is kept until that is confirmed.
	MaxPValue = 0.5

	Method      = "tcav"
	RequestKey  = "tcav"
	Description = "Running TCAV"

	ChartWidth  = 500
	ChartHeight = 200
)

var ErrInvalidSelection = errors.New("invalid selection")

type SubsetService interface {
	ListNames(ctx context.Context) ([]string, error)
	Members(ctx context.Context, name string) ([]string, bool, error)
}

type AppState interface {
	ModelName() string
	DatasetName() string
	Inputs(ctx context.Context) ([]api.IndexedInput, error)
}

type Interpreter interface {
	Interpret(ctx context.Context, req api.InterpretRequest) ([]api.TCAVResult, error)
}

type Deps struct {
	Subsets     SubsetService
	State       AppState
	Interpreter Interpreter
	Gate        *latest.Gate
}

type Option func(*Controller)

func WithDimensions(width, height int) Option {
	return func(c *Controller) {
		c.width, c.height = width, height
	}
}

func WithSelection(sel api.Selection) Option {
	return func(c *Controller) {
		if sel.Subset == "" {
			sel.Subset = AllSubsets
		}
		c.selection = sel
	}
}

// Controller owns the selection, loading and score state of one TCAV panel.
type Controller struct {
	spec   api.ModelSpec
	deps   Deps
	width  int
	height int

	mu         sync.Mutex
	selection  api.Selection
	rendered   bool
	loading    bool
	loadingRun uint64
	runs       uint64
	progress   api.Progress
	scores     map[string]float64

	observers    map[int]func(api.PanelView)
	nextObserver int
}

func NewController(spec api.ModelSpec, deps Deps, opts ...Option) *Controller {
	if deps.Gate == nil {
		deps.Gate = latest.NewGate()
	}

	c := &Controller{
		spec:      spec,
		deps:      deps,
		width:     ChartWidth,
		height:    ChartHeight,
		selection: api.Selection{Subset: AllSubsets},
		scores:    map[string]float64{},
		observers: make(map[int]func(api.PanelView)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Spec() api.ModelSpec {
	return c.spec
}

func (c *Controller) Selection() api.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Scores returns the score map of the last completed run.
func (c *Controller) Scores() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.scores)
}

func (c *Controller) SetSubset(name string) {
	c.update(func(sel *api.Selection) { sel.Subset = name })
}

func (c *Controller) SetLayer(layer string) {
	c.update(func(sel *api.Selection) { sel.Layer = layer })
}

func (c *Controller) SetClass(class string) {
	c.update(func(sel *api.Selection) { sel.Class = class })
}

// Select replaces the whole selection. Layer and class must be empty or one of
// the model's options.
func (c *Controller) Select(sel api.Selection) error {
	if sel.Subset == "" {
		sel.Subset = AllSubsets
	}
	if sel.Layer != "" && !slices.Contains(GradientLayers(c.spec), sel.Layer) {
		return fmt.Errorf("%w: unknown gradient layer '%s'", ErrInvalidSelection, sel.Layer)
	}
	if sel.Class != "" && !slices.Contains(PredictableClasses(c.spec), sel.Class) {
		return fmt.Errorf("%w: unknown class '%s'", ErrInvalidSelection, sel.Class)
	}

	c.update(func(s *api.Selection) { *s = sel })
	return nil
}

func (c *Controller) update(fn func(sel *api.Selection)) {
	c.mu.Lock()
	fn(&c.selection)
	c.mu.Unlock()

	c.notify()
}

// applyDefaults picks the first layer and class on first render. Later renders
// leave the selection alone. Caller holds c.mu.
func (c *Controller) applyDefaults() {
	if c.rendered {
		return
	}
	c.rendered = true

	if layers := GradientLayers(c.spec); c.selection.Layer == "" && len(layers) > 0 {
		c.selection.Layer = layers[0]
	}
	if classes := PredictableClasses(c.spec); c.selection.Class == "" && len(classes) > 0 {
		c.selection.Class = classes[0]
	}
}

// candidates lists the subsets a run covers for the given subset selection.
func (c *Controller) candidates(ctx context.Context, subset string) ([]string, error) {
	if subset != AllSubsets {
		return []string{subset}, nil
	}
	names, err := c.deps.Subsets.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing subsets: %w", err)
	}
	return names, nil
}

// resolve returns the members of a subset if it exists and is large enough to
// serve as a concept set.
func (c *Controller) resolve(ctx context.Context, name string) ([]string, bool) {
	members, ok, err := c.deps.Subsets.Members(ctx, name)
	if err != nil {
		slog.Warn("unable to resolve subset, skipping", "subset", name, "error", err)
		return nil, false
	}
	if !ok || members == nil || len(members) < MinSubsetSize {
		return nil, false
	}
	return members, true
}

// CanRun reports whether at least one candidate subset of the current
// selection can be used as a concept set.
func (c *Controller) CanRun(ctx context.Context) bool {
	candidates, err := c.candidates(ctx, c.Selection().Subset)
	if err != nil {
		slog.Warn("unable to determine candidate subsets", "error", err)
		return false
	}
	for _, name := range candidates {
		if _, ok := c.resolve(ctx, name); ok {
			return true
		}
	}
	return false
}

// Run computes TCAV scores for every candidate subset, one request at a time.
// The score map is replaced only if the run completes; a run superseded by a
// newer one returns nil and leaves the scores untouched. A failed request
// aborts the run the same way and its error is returned.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.runs++
	run := c.runs
	c.loading = true
	c.loadingRun = run
	c.progress = api.Progress{}
	sel := c.selection
	c.mu.Unlock()

	// Requests still in flight from an earlier run are now stale.
	c.deps.Gate.Advance(RequestKey)
	c.notify()

	candidates, err := c.candidates(ctx, sel.Subset)
	if err != nil {
		c.finish(run, nil)
		return err
	}
	c.setProgress(run, 0, len(candidates))

	var inputs []api.IndexedInput
	scores := make(map[string]float64)

	for i, name := range candidates {
		members, ok := c.resolve(ctx, name)
		if !ok {
			c.setProgress(run, i+1, len(candidates))
			continue
		}

		if c.superseded(run) {
			slog.Info("tcav run superseded, aborting", "run", run, "subset", name)
			c.finish(run, nil)
			return nil
		}

		if inputs == nil {
			if inputs, err = c.deps.State.Inputs(ctx); err != nil {
				c.finish(run, nil)
				return fmt.Errorf("error loading dataset inputs: %w", err)
			}
		}

		req := api.InterpretRequest{
			Inputs:  inputs,
			Model:   c.deps.State.ModelName(),
			Dataset: c.deps.State.DatasetName(),
			Method:  Method,
			Config: api.TCAVConfig{
				ConceptSetIds:  members,
				ClassToExplain: sel.Class,
				GradLayer:      sel.Layer,
			},
			Description: Description,
		}

		results, err := latest.Call(ctx, c.deps.Gate, RequestKey, func(ctx context.Context) ([]api.TCAVResult, error) {
			return c.deps.Interpreter.Interpret(ctx, req)
		})
		if errors.Is(err, latest.ErrStale) {
			slog.Info("tcav result is stale, aborting run", "run", run, "subset", name)
			c.finish(run, nil)
			return nil
		}
		if err != nil {
			c.finish(run, nil)
			return fmt.Errorf("error running tcav for subset '%s': %w", name, err)
		}

		if len(results) > 0 && results[0].PValue < MaxPValue {
			scores[name] = results[0].Result.Score
		} else {
			slog.Debug("dropping insignificant tcav result", "subset", name)
		}

		c.setProgress(run, i+1, len(candidates))
	}

	c.finish(run, scores)
	slog.Info("tcav run complete", "run", run, "candidates", len(candidates), "scores", len(scores))
	return nil
}

func (c *Controller) superseded(run uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs != run
}

func (c *Controller) setProgress(run uint64, done, total int) {
	c.mu.Lock()
	if c.runs != run {
		c.mu.Unlock()
		return
	}
	c.progress = api.Progress{Done: done, Total: total}
	c.mu.Unlock()

	c.notify()
}

// finish ends a run. scores is nil for aborted runs. The loading flag and the
// score map are left alone if a newer run has started since, so an aborted run
// does not clear loading while the run that superseded it is still going.
func (c *Controller) finish(run uint64, scores map[string]float64) {
	c.mu.Lock()
	if c.loadingRun == run {
		c.loading = false
	}
	if scores != nil && c.runs == run {
		c.scores = scores
	}
	c.mu.Unlock()

	c.notify()
}
