package appstate

import (
	"context"
	"sync"
	"tcav-panel/internal/database"
	"tcav-panel/pkg/api"

	"gorm.io/gorm"
)

// State tracks the model and dataset the dashboard is currently showing.
type State struct {
	db *gorm.DB

	mu      sync.RWMutex
	model   string
	dataset string
}

func New(db *gorm.DB, model, dataset string) *State {
	return &State{db: db, model: model, dataset: dataset}
}

func (s *State) ModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *State) DatasetName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

func (s *State) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

func (s *State) SetDataset(dataset string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = dataset
}

// Inputs returns every example of the current dataset.
func (s *State) Inputs(ctx context.Context) ([]api.IndexedInput, error) {
	return database.LoadExamples(ctx, s.db, s.DatasetName())
}

func (s *State) AddExamples(ctx context.Context, dataset string, inputs []api.IndexedInput) error {
	return s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		return database.SaveExamples(ctx, txn, dataset, inputs)
	})
}
