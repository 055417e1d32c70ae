package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "aidaily",
		Short:        "Ingest AI news feeds, cluster them into stories and summarize them per audience",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(clusterCmd())
	root.AddCommand(summarizeCmd())
	root.AddCommand(runCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(sourcesCmd())
	root.AddCommand(checkFeedsCmd())
	root.AddCommand(storiesCmd())

	return root
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch every registered feed and store new items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context())
		},
	}
}

func clusterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cluster",
		Short: "Group unassigned items into stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(cmd.Context())
		},
	}
}

func summarizeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Write persona summaries for the top stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(cmd.Context(), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max stories to summarize (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run ingest, cluster and summarize once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context())
		},
	}
}

func daemonCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the scheduler and the ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage feed sources",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Register the sources listed in the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show registered sources and their item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourcesList(cmd.Context())
		},
	})
	return cmd
}

func checkFeedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-feeds",
		Short: "Fetch every registered feed once and report its health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckFeeds(cmd.Context())
		},
	}
}

func storiesCmd() *cobra.Command {
	var (
		timeframe  string
		persona    string
		category   string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stories",
		Short: "Show the top stories with their summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStories(cmd.Context(), timeframe, persona, category, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&timeframe, "timeframe", "today", "today, 7d or 30d")
	cmd.Flags().StringVar(&persona, "persona", "", "only stories summarized for this persona")
	cmd.Flags().StringVar(&category, "category", "", "only stories summarized under this category")
	cmd.Flags().IntVar(&limit, "limit", 0, "max stories (default: 10 for today, 30 otherwise)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
