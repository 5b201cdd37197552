package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gopkg.in/yaml.v2"
)

type scoreRow struct {
	Subset string  `yaml:"subset"`
	Score  float64 `yaml:"score"`
}

// sortedScores orders scores from highest to lowest, ties by subset name.
func sortedScores(scores map[string]float64) []scoreRow {
	rows := make([]scoreRow, 0, len(scores))
	for name, score := range scores {
		rows = append(rows, scoreRow{Subset: name, Score: score})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Subset < rows[j].Subset
	})
	return rows
}

func writeScores(w io.Writer, format string, scores map[string]float64) error {
	rows := sortedScores(scores)

	switch format {
	case "yaml":
		out, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("error encoding scores: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "no significant scores")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SUBSET\tSCORE")
		for _, row := range rows {
			fmt.Fprintf(tw, "%s\t%.4f\n", row.Subset, row.Score)
		}
		return tw.Flush()
	}
}
