package subsets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"tcav-panel/internal/database"
	"tcav-panel/internal/tcav"
	"tcav-panel/pkg/api"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrExists       = errors.New("subset already exists")
	ErrNotFound     = errors.New("subset not found")
	ErrInvalidName  = errors.New("invalid subset name")
	ErrReservedName = errors.New("reserved subset name")
)

var validName = regexp.MustCompile(`^[\w-]+$`)

// Store is the subset service backed by the subsets / subset_members tables.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ListNames returns every subset name in creation order.
func (s *Store) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&database.Subset{}).Order("creation_time ASC, name ASC").Pluck("name", &names).Error; err != nil {
		slog.Error("error listing subsets", "error", err)
		return nil, fmt.Errorf("error listing subsets: %w", err)
	}
	return names, nil
}

// Members returns the member ids of the named subset. The bool is false if the
// subset does not exist.
func (s *Store) Members(ctx context.Context, name string) ([]string, bool, error) {
	var subset database.Subset
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("name = ?", name).
		First(&subset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		slog.Error("error loading subset", "subset", name, "error", err)
		return nil, false, fmt.Errorf("error loading subset '%s': %w", name, err)
	}

	members := make([]string, 0, len(subset.Members))
	for _, m := range subset.Members {
		members = append(members, m.ExampleId)
	}
	return members, true, nil
}

func (s *Store) List(ctx context.Context) ([]api.Subset, error) {
	var rows []database.Subset
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("creation_time ASC, name ASC").
		Find(&rows).Error
	if err != nil {
		slog.Error("error listing subsets", "error", err)
		return nil, fmt.Errorf("error listing subsets: %w", err)
	}

	out := make([]api.Subset, 0, len(rows))
	for _, row := range rows {
		out = append(out, convertSubset(row))
	}
	return out, nil
}

// Create stores a new subset. Duplicate member ids are kept once, in first
// occurrence order. Names are limited to letters, digits, underscores and
// hyphens, and may not be the name that selects every subset.
func (s *Store) Create(ctx context.Context, name string, members []string) (api.Subset, error) {
	if !validName.MatchString(name) {
		return api.Subset{}, fmt.Errorf("%w '%s': only alphanumeric characters, underscores, and hyphens are allowed", ErrInvalidName, name)
	}
	if name == tcav.AllSubsets {
		return api.Subset{}, fmt.Errorf("%w '%s': it selects every subset", ErrReservedName, name)
	}

	subset := database.Subset{
		Id:           uuid.New(),
		Name:         name,
		CreationTime: time.Now().UTC(),
	}

	seen := make(map[string]bool, len(members))
	for _, id := range members {
		if seen[id] {
			continue
		}
		seen[id] = true
		subset.Members = append(subset.Members, database.SubsetMember{
			SubsetId:  subset.Id,
			ExampleId: id,
			Position:  len(subset.Members),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var count int64
		if err := txn.Model(&database.Subset{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return fmt.Errorf("error checking for existing subset: %w", err)
		}
		if count > 0 {
			return ErrExists
		}

		if err := txn.Create(&subset).Error; err != nil {
			return fmt.Errorf("error creating subset: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrExists) {
			slog.Error("error creating subset", "subset", name, "error", err)
		}
		return api.Subset{}, err
	}

	slog.Info("created subset", "subset", name, "members", len(subset.Members))
	return convertSubset(subset), nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var subset database.Subset
		if err := txn.Where("name = ?", name).First(&subset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("error loading subset: %w", err)
		}

		if err := txn.Where("subset_id = ?", subset.Id).Delete(&database.SubsetMember{}).Error; err != nil {
			return fmt.Errorf("error deleting subset members: %w", err)
		}
		if err := txn.Delete(&database.Subset{Id: subset.Id}).Error; err != nil {
			return fmt.Errorf("error deleting subset: %w", err)
		}

		slog.Info("deleted subset", "subset", name)
		return nil
	})
}

func convertSubset(row database.Subset) api.Subset {
	members := make([]string, 0, len(row.Members))
	for _, m := range row.Members {
		members = append(members, m.ExampleId)
	}
	return api.Subset{
		Id:           row.Id,
		Name:         row.Name,
		Members:      members,
		CreationTime: row.CreationTime,
	}
}
