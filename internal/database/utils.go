package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"tcav-panel/pkg/api"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveExamples upserts the inputs of a dataset, keeping their order.
func SaveExamples(ctx context.Context, txn *gorm.DB, dataset string, inputs []api.IndexedInput) error {
	if len(inputs) == 0 {
		return nil
	}

	var offset int64
	if err := txn.WithContext(ctx).Model(&Example{}).Where("dataset = ?", dataset).Count(&offset).Error; err != nil {
		return fmt.Errorf("error counting examples: %w", err)
	}

	rows := make([]Example, 0, len(inputs))
	for i, input := range inputs {
		data, err := json.Marshal(input.Data)
		if err != nil {
			return fmt.Errorf("error encoding example '%s': %w", input.Id, err)
		}
		rows = append(rows, Example{Dataset: dataset, Id: input.Id, Position: int(offset) + i, Data: data})
	}

	err := txn.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 500).Error
	if err != nil {
		slog.Error("error saving examples", "dataset", dataset, "error", err)
		return fmt.Errorf("error saving examples: %w", err)
	}
	return nil
}

func LoadExamples(ctx context.Context, txn *gorm.DB, dataset string) ([]api.IndexedInput, error) {
	var rows []Example
	if err := txn.WithContext(ctx).Where("dataset = ?", dataset).Order("position ASC").Find(&rows).Error; err != nil {
		slog.Error("error loading examples", "dataset", dataset, "error", err)
		return nil, fmt.Errorf("error loading examples: %w", err)
	}

	inputs := make([]api.IndexedInput, 0, len(rows))
	for _, row := range rows {
		input := api.IndexedInput{Id: row.Id}
		if len(row.Data) > 0 {
			if err := json.Unmarshal(row.Data, &input.Data); err != nil {
				return nil, fmt.Errorf("error decoding example '%s': %w", row.Id, err)
			}
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}
