package main

import (
	"fmt"
	"os"
	"tcav-panel/internal/database"
	"tcav-panel/internal/subsets"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var subsetsCmd = &cobra.Command{
	Use:   "subsets",
	Short: "Manage the subsets used as concept sets",
}

var subsetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subsets and their sizes",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		all, err := store.List(c.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMEMBERS\tCREATED")
		for _, s := range all {
			fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, len(s.Members), s.CreationTime.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var subsetsAddCmd = &cobra.Command{
	Use:   "add NAME ID...",
	Short: "Create a subset from example ids",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		subset, err := store.Create(c.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("created subset %s with %d members\n", subset.Name, len(subset.Members))
		return nil
	},
}

var subsetsRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Delete a subset",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return store.Delete(c.Context(), args[0])
	},
}

func init() {
	subsetsCmd.AddCommand(subsetsListCmd, subsetsAddCmd, subsetsRmCmd)
}

func openStore() (*subsets.Store, error) {
	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return subsets.NewStore(db), nil
}
