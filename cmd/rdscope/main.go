package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rdscope/internal/awsclient"
	"rdscope/internal/config"
	"rdscope/internal/discovery"
	"rdscope/internal/domain"
	"rdscope/internal/gateway"
	"rdscope/internal/logging"
	"rdscope/internal/outputter"
)

// exitNotFound is the distinct exit code for a primary resource that does
// not exist under the given kind and region
const exitNotFound = 2

func main() {
	var (
		cluster     bool
		region      string
		profile     string
		timeout     time.Duration
		concurrency int
		format      string
		detailed    bool
		summaryOnly bool
		exportCSV   string
		exportJSON  string
		configPath  string
		debug       bool
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "rdscope <identifier>",
		Short: "rdscope - RDS billable resource discovery",
		Long: "Discovers all billable AWS resources transitively tied to an RDS DB instance\n" +
			"or DB cluster: snapshots, security groups, subnet groups, parameter groups,\n" +
			"option groups, and cluster members.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(configPath, region, profile, timeout, concurrency, format, cmd)
			if err != nil {
				return err
			}
			return runDiscovery(ctx, args[0], cluster, opts, renderOptions{
				detailed:    detailed,
				summaryOnly: summaryOnly,
				exportCSV:   exportCSV,
				exportJSON:  exportJSON,
				debug:       debug,
			})
		},
	}

	rootCmd.Flags().BoolVar(&cluster, "cluster", false, "Treat the identifier as a DB cluster identifier instead of a DB instance")
	rootCmd.Flags().StringVar(&region, "region", "", "AWS region name (default: AWS CLI default or environment)")
	rootCmd.Flags().StringVar(&profile, "profile", "", "AWS profile name (default: AWS CLI default)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Run-level timeout (default from config)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum simultaneous provider calls (default from config)")
	rootCmd.Flags().StringVar(&format, "format", "", "Table format: pretty, light, rounded")
	rootCmd.Flags().BoolVar(&detailed, "detailed", false, "Show detailed tables grouped by resource type")
	rootCmd.Flags().BoolVar(&summaryOnly, "summary-only", false, "Show only the resource summary table")
	rootCmd.Flags().StringVar(&exportCSV, "export-csv", "", "Export resources to a CSV file")
	rootCmd.Flags().StringVar(&exportJSON, "export-json", "", "Export the complete result to a JSON file")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file overriding the embedded defaults")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging (verbose output)")

	if err := rootCmd.Execute(); err != nil {
		if domain.IsNotFound(err) {
			os.Exit(exitNotFound)
		}
		os.Exit(1)
	}
}

type renderOptions struct {
	detailed    bool
	summaryOnly bool
	exportCSV   string
	exportJSON  string
	debug       bool
}

func resolveOptions(configPath, region, profile string, timeout time.Duration, concurrency int, format string, cmd *cobra.Command) (*config.RunOptions, error) {
	// .env is optional; production setups use env vars or instance roles
	_ = godotenv.Load()

	opts, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	opts.Region = region
	opts.Profile = profile
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = timeout
	}
	if cmd.Flags().Changed("concurrency") {
		opts.Concurrency = concurrency
	}
	if format != "" {
		opts.Format = format
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func runDiscovery(ctx context.Context, identifier string, cluster bool, opts *config.RunOptions, render renderOptions) error {
	logging.SetLogLevel(logging.LogLevelWarn)
	if render.debug {
		logging.SetLogLevel(logging.LogLevelDebug)
	}

	kind := domain.ResourceKindInstance
	if cluster {
		kind = domain.ResourceKindCluster
	}

	clients, err := awsclient.New(ctx, awsclient.Options{Region: opts.Region, Profile: opts.Profile})
	if err != nil {
		return err
	}

	// Preflight: fail fast on bad credentials before any discovery work
	accountID, err := clients.AccountID(ctx)
	if err != nil {
		return fmt.Errorf("AWS credential check failed (ensure valid credentials via env vars, IAM role, or SSO): %w", err)
	}
	logging.LogInfo("Credential preflight passed", map[string]interface{}{
		"account": accountID,
		"region":  clients.Region,
	})

	engine := discovery.New(gateway.NewAWS(clients), discovery.Options{
		Timeout:     opts.Timeout,
		Concurrency: opts.Concurrency,
	})

	graph, err := engine.Discover(ctx, identifier, kind)
	if err != nil {
		return err
	}

	fmt.Print(outputter.RenderPrimary(graph, clients.Region))
	fmt.Println(outputter.RenderSummary(graph, opts.Format))
	if !render.summaryOnly {
		if render.detailed {
			fmt.Println(outputter.RenderDetailed(graph, opts.Format))
		} else {
			fmt.Println(outputter.RenderResources(graph, opts.Format))
		}
	}

	if render.exportCSV != "" {
		if err := outputter.ExportCSV(graph, render.exportCSV); err != nil {
			return err
		}
		fmt.Printf("Resources exported to %s\n", render.exportCSV)
	}
	if render.exportJSON != "" {
		if err := outputter.ExportJSON(graph, render.exportJSON); err != nil {
			return err
		}
		fmt.Printf("Results exported to %s\n", render.exportJSON)
	}

	// Partial results are a success with a warning, not an error
	if !graph.Complete() {
		fmt.Fprint(os.Stderr, outputter.RenderUnavailable(graph))
	}

	if render.debug {
		fmt.Fprintln(os.Stderr, logging.GetMetrics().Summary())
	}

	return nil
}
