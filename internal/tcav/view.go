package tcav

import (
	"context"
	"log/slog"
	"maps"
	"tcav-panel/pkg/api"

	"github.com/montanaflynn/stats"
)

// Snapshot returns the panel state without touching the subset service.
func (c *Controller) Snapshot() api.PanelView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() api.PanelView {
	return api.PanelView{
		Model:              c.spec.Model,
		Dataset:            c.deps.State.DatasetName(),
		Selection:          c.selection,
		GradientLayers:     GradientLayers(c.spec),
		PredictableClasses: PredictableClasses(c.spec),
		Loading:            c.loading,
		Progress:           c.progress,
		Scores:             maps.Clone(c.scores),
		Summary:            summarize(c.scores),
		Width:              c.width,
		Height:             c.height,
	}
}

// ApplyDefaults does what the first render does to the selection. Callers
// that run the panel without rendering it must call this first.
func (c *Controller) ApplyDefaults() {
	c.mu.Lock()
	first := !c.rendered
	c.applyDefaults()
	c.mu.Unlock()

	if first {
		c.notify()
	}
}

// View renders the full panel. The first call applies the default layer and
// class selection.
func (c *Controller) View(ctx context.Context) api.PanelView {
	c.ApplyDefaults()
	view := c.Snapshot()

	names, err := c.deps.Subsets.ListNames(ctx)
	if err != nil {
		slog.Warn("unable to list subsets for panel", "error", err)
		names = []string{}
	}
	view.Subsets = append([]string{AllSubsets}, names...)
	view.CanRun = c.CanRun(ctx)

	return view
}

// Subscribe registers fn to receive a snapshot after every state change. The
// returned func removes the subscription.
func (c *Controller) Subscribe(fn func(api.PanelView)) func() {
	c.mu.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	view := c.snapshotLocked()
	observers := make([]func(api.PanelView), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(view)
	}
}

func summarize(scores map[string]float64) api.ScoreSummary {
	if len(scores) == 0 {
		return api.ScoreSummary{}
	}

	data := make(stats.Float64Data, 0, len(scores))
	for _, score := range scores {
		data = append(data, score)
	}

	mean, err := stats.Mean(data)
	if err != nil {
		slog.Error("error computing mean score", "error", err)
	}
	maxScore, err := stats.Max(data)
	if err != nil {
		slog.Error("error computing max score", "error", err)
	}

	return api.ScoreSummary{Count: len(scores), Mean: mean, Max: maxScore}
}
