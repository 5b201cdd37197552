package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"tcav-panel/internal/appstate"
	"tcav-panel/internal/interpreter"
	"tcav-panel/internal/latest"
	"tcav-panel/internal/subsets"
	"tcav-panel/internal/tcav"
	"tcav-panel/pkg/api"

	"github.com/go-chi/chi/v5"
)

type PanelService struct {
	subsets *subsets.Store
	state   *appstate.State
	specs   *interpreter.CapabilityCache
	interp  tcav.Interpreter
	gate    *latest.Gate

	mu           sync.Mutex
	panel        *tcav.Controller
	panelModel   string
	panelDataset string
}

func NewPanelService(store *subsets.Store, state *appstate.State, specs *interpreter.CapabilityCache, interp tcav.Interpreter) *PanelService {
	return &PanelService{
		subsets: store,
		state:   state,
		specs:   specs,
		interp:  interp,
		gate:    latest.NewGate(),
	}
}

func (s *PanelService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Get("/models/{model}/panel/tcav/available", RestHandler(s.GetAvailability))

	r.Post("/state", RestHandler(s.SetState))
	r.Post("/datasets/{dataset}/examples", RestHandler(s.AddExamples))

	r.Route("/panel", func(r chi.Router) {
		r.Get("/", RestHandler(s.GetPanel))
		r.Post("/selection", RestHandler(s.UpdateSelection))
		r.Post("/run", RestHandler(s.RunPanel))
		r.Get("/stream", RestStreamHandler(s.StreamPanel))
	})

	r.Route("/subsets", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListSubsets))
		r.Post("/", RestHandler(s.CreateSubset))
		r.Delete("/{name}", RestHandler(s.DeleteSubset))
	})
}

func (s *PanelService) modelSpec(ctx context.Context, model string) (api.ModelSpec, error) {
	spec, err := s.specs.ModelSpec(ctx, model)
	if err != nil {
		slog.Error("error fetching model spec", "model", model, "error", err)
		return api.ModelSpec{}, CodedErrorf(http.StatusBadGateway, "unable to fetch spec for model '%s'", model)
	}
	return spec, nil
}

// currentPanel returns the panel controller for the current model and
// dataset, creating it when either changed.
func (s *PanelService) currentPanel(ctx context.Context) (*tcav.Controller, error) {
	model, dataset := s.state.ModelName(), s.state.DatasetName()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panel != nil && s.panelModel == model && s.panelDataset == dataset {
		return s.panel, nil
	}

	spec, err := s.modelSpec(ctx, model)
	if err != nil {
		return nil, err
	}
	if !tcav.ShouldDisplay(spec) {
		return nil, CodedErrorf(http.StatusNotFound, "tcav panel is not available for model '%s'", model)
	}

	var opts []tcav.Option
	if s.panel != nil {
		// Keep the subset choice across model switches, layer and class depend on the model.
		opts = append(opts, tcav.WithSelection(api.Selection{Subset: s.panel.Selection().Subset}))
	}

	s.panel = tcav.NewController(spec, tcav.Deps{
		Subsets:     s.subsets,
		State:       s.state,
		Interpreter: s.interp,
		Gate:        s.gate,
	}, opts...)
	s.panelModel, s.panelDataset = model, dataset

	slog.Info("created tcav panel", "model", model, "dataset", dataset)
	return s.panel, nil
}

func (s *PanelService) GetAvailability(r *http.Request) (any, error) {
	model, err := URLParam(r, "model")
	if err != nil {
		return nil, err
	}

	spec, err := s.modelSpec(r.Context(), model)
	if err != nil {
		return nil, err
	}

	return api.AvailabilityResponse{Model: model, Available: tcav.ShouldDisplay(spec)}, nil
}

func (s *PanelService) SetState(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SetStateRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Model == "" && req.Dataset == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "one of model or dataset must be specified")
	}

	if req.Model != "" {
		// Posting a model again reloads it: its spec is fetched anew and the
		// panel is rebuilt on next use.
		s.specs.Invalidate(req.Model)
		s.mu.Lock()
		s.panelModel = ""
		s.mu.Unlock()
		s.state.SetModel(req.Model)
	}
	if req.Dataset != "" {
		s.state.SetDataset(req.Dataset)
	}

	slog.Info("switched dashboard state", "model", s.state.ModelName(), "dataset", s.state.DatasetName())
	return api.SetStateRequest{Model: s.state.ModelName(), Dataset: s.state.DatasetName()}, nil
}

func (s *PanelService) AddExamples(r *http.Request) (any, error) {
	dataset, err := URLParam(r, "dataset")
	if err != nil {
		return nil, err
	}

	inputs, err := ParseRequest[[]api.IndexedInput](r)
	if err != nil {
		return nil, err
	}

	for _, input := range inputs {
		if input.Id == "" {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "every example must have an id")
		}
	}

	if err := s.state.AddExamples(r.Context(), dataset, inputs); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to store examples")
	}

	return nil, nil
}

func (s *PanelService) GetPanel(r *http.Request) (any, error) {
	panel, err := s.currentPanel(r.Context())
	if err != nil {
		return nil, err
	}
	return panel.View(r.Context()), nil
}

func (s *PanelService) UpdateSelection(r *http.Request) (any, error) {
	req, err := ParseRequest[api.Selection](r)
	if err != nil {
		return nil, err
	}

	panel, err := s.currentPanel(r.Context())
	if err != nil {
		return nil, err
	}

	if err := panel.Select(req); err != nil {
		if errors.Is(err, tcav.ErrInvalidSelection) {
			return nil, CodedError(http.StatusUnprocessableEntity, err)
		}
		return nil, err
	}

	return panel.View(r.Context()), nil
}

func (s *PanelService) RunPanel(r *http.Request) (any, error) {
	panel, err := s.currentPanel(r.Context())
	if err != nil {
		return nil, err
	}

	panel.ApplyDefaults()

	if !panel.CanRun(r.Context()) {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "no selected subset has at least %d members", tcav.MinSubsetSize)
	}

	if err := panel.Run(r.Context()); err != nil {
		slog.Error("tcav run failed", "error", err)
		return nil, CodedErrorf(http.StatusBadGateway, "tcav run failed: %v", err)
	}

	return panel.View(r.Context()), nil
}

func (s *PanelService) StreamPanel(r *http.Request) (StreamResponse, error) {
	panel, err := s.currentPanel(r.Context())
	if err != nil {
		return nil, err
	}

	return func(yield func(any, error) bool) {
		// Holds only the newest pending view, older ones are replaced.
		updates := make(chan api.PanelView, 1)
		unsubscribe := panel.Subscribe(func(view api.PanelView) {
			for {
				select {
				case updates <- view:
					return
				default:
				}
				select {
				case <-updates:
				default:
				}
			}
		})
		defer unsubscribe()

		if !yield(panel.Snapshot(), nil) {
			return
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case view := <-updates:
				if !yield(view, nil) {
					return
				}
			}
		}
	}, nil
}

func (s *PanelService) ListSubsets(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListSubsetsParams](r)
	if err != nil {
		return nil, err
	}

	all, err := s.subsets.List(r.Context())
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing subsets")
	}

	out := make([]api.Subset, 0, len(all))
	for _, subset := range all {
		if len(subset.Members) >= params.MinSize {
			out = append(out, subset)
		}
	}

	return out, nil
}

func (s *PanelService) CreateSubset(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateSubsetRequest](r)
	if err != nil {
		return nil, err
	}

	subset, err := s.subsets.Create(r.Context(), req.Name, req.Members)
	if err != nil {
		switch {
		case errors.Is(err, subsets.ErrInvalidName):
			return nil, CodedError(http.StatusBadRequest, err)
		case errors.Is(err, subsets.ErrReservedName):
			return nil, CodedError(http.StatusUnprocessableEntity, err)
		case errors.Is(err, subsets.ErrExists):
			return nil, CodedErrorf(http.StatusConflict, "subset '%s' already exists", req.Name)
		default:
			return nil, CodedErrorf(http.StatusInternalServerError, "failed to create subset")
		}
	}

	return subset, nil
}

func (s *PanelService) DeleteSubset(r *http.Request) (any, error) {
	name, err := URLParam(r, "name")
	if err != nil {
		return nil, err
	}

	if err := s.subsets.Delete(r.Context(), name); err != nil {
		if errors.Is(err, subsets.ErrNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "subset '%s' not found", name)
		}
		slog.Error("error deleting subset", "subset", name, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to delete subset")
	}

	return nil, nil
}
