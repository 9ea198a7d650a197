package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

func searchCMD(load configLoader) *cobra.Command {
	var (
		dealID     string
		maxResults int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.retrieval.SearchDetailed(cmd.Context(), domain.SearchQuery{
				Query:      args[0],
				ParentID:   dealID,
				MaxResults: maxResults,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			if len(result.Texts) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for i, text := range result.Texts {
				fmt.Fprintf(out, "%d. %s\n\n", i+1, text)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dealID, "deal", "", "restrict results to one deal")
	cmd.Flags().IntVarP(&maxResults, "max", "n", domain.DefaultMaxResults, "number of neighbours to fetch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}
