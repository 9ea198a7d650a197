package main

// @title           Innovest RAG API
// @version         1.0
// @description     Deal document ingestion and semantic retrieval.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/innovest/innovest-rag/docs"
	"github.com/innovest/innovest-rag/internal/config"
)

var version = "dev"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "innovest-rag",
		Short:         "Deal document ingestion and semantic retrieval",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (env INNOVEST_* overrides)")

	load := func() (*config.Config, error) {
		return config.Load(cfgPath)
	}

	root.AddCommand(
		serveCMD(load),
		ingestCMD(load),
		searchCMD(load),
		tokenCMD(load),
		versionCMD(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type configLoader func() (*config.Config, error)

func versionCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
