package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/triage/pkg/config"
	"github.com/zen-systems/triage/pkg/pipeline"
	"github.com/zen-systems/triage/pkg/schema"
	"github.com/zen-systems/triage/pkg/vectorstore"
)

var (
	configFile   string
	logFileFlag  string
	logLevelFlag string
	offlineFlag  bool
	inMemoryFlag bool
	usageFlag    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "triage",
		Short: "AI help-desk ticket routing, drafting and pattern detection",
		Long: `Triage routes support tickets to departments by consulting one model
	evaluator per department and an arbiter, drafts validated replies, and
	detects repetition and misuse across ticket batches.

	Historical tickets are indexed into a local vector store and used as
	precedent for routing and as examples for drafting.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to pipeline config file")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "write JSON logs to this file as well as stderr")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&offlineFlag, "offline", false, "use the mock adapter and fallback embeddings")
	rootCmd.PersistentFlags().BoolVar(&inMemoryFlag, "in-memory", false, "keep the vector store in memory for this run")
	rootCmd.PersistentFlags().BoolVar(&usageFlag, "usage", false, "print token usage and estimated cost to stderr")

	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(patternsCmd())
	rootCmd.AddCommand(similarCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [tickets.yaml]",
		Short: "Embed and store historical tickets",
		Long:  "Reads a JSON or YAML list of tickets (file or stdin) and upserts them into the vector store.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tickets []schema.Ticket
			if err := readInput(args, &tickets); err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *pipeline.Service) error {
				report, err := svc.Index(ctx, tickets)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func routeCmd() *cobra.Command {
	var departmentsFile string

	cmd := &cobra.Command{
		Use:   "route [ticket.yaml]",
		Short: "Assign a ticket to a department",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if departmentsFile == "" {
				return fmt.Errorf("--departments is required")
			}
			var departments []schema.Department
			if err := readFile(departmentsFile, &departments); err != nil {
				return err
			}
			var ticket schema.Ticket
			if err := readInput(args, &ticket); err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *pipeline.Service) error {
				result, err := svc.Route(ctx, ticket, departments)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result.Decision)
			})
		},
	}

	cmd.Flags().StringVarP(&departmentsFile, "departments", "d", "", "JSON or YAML list of departments (required)")
	return cmd
}

func draftCmd() *cobra.Command {
	var department string
	var attempts int

	cmd := &cobra.Command{
		Use:   "draft [ticket.yaml]",
		Short: "Draft a validated reply for a ticket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ticket schema.Ticket
			if err := readInput(args, &ticket); err != nil {
				return err
			}
			if department == "" {
				department = ticket.DepartmentName
			}
			return withService(cmd, func(ctx context.Context, svc *pipeline.Service) error {
				draft, err := svc.Draft(ctx, ticket, department, attempts)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), draft)
			})
		},
	}

	cmd.Flags().StringVar(&department, "department", "", "department replying (defaults to the ticket's department)")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "maximum draft attempts (0 uses the configured value)")
	return cmd
}

func patternsCmd() *cobra.Command {
	var department string

	cmd := &cobra.Command{
		Use:   "patterns [tickets.yaml]",
		Short: "Detect repetition and misuse across a ticket batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if department == "" {
				return fmt.Errorf("--department is required")
			}
			var tickets []schema.Ticket
			if err := readInput(args, &tickets); err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *pipeline.Service) error {
				report, err := svc.Analyze(ctx, tickets, department)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}

	cmd.Flags().StringVar(&department, "department", "", "department the batch belongs to (required)")
	return cmd
}

func similarCmd() *cobra.Command {
	var department string
	var statuses []string
	var k int

	cmd := &cobra.Command{
		Use:   "similar [text]",
		Short: "Find stored tickets similar to some text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := vectorstore.Filter{DepartmentName: department}
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, schema.NormalizeStatus(s))
			}
			return withService(cmd, func(ctx context.Context, svc *pipeline.Service) error {
				matches, err := svc.Similar(ctx, args[0], filter, k)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SCORE\tID\tDEPARTMENT\tSTATUS\tTITLE")
				for _, m := range matches {
					meta := m.Record.Metadata
					fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\n", m.Similarity, meta.ID, meta.DepartmentName, meta.Status, meta.Title)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&department, "department", "", "only tickets of this department")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only tickets with these statuses")
	cmd.Flags().IntVarP(&k, "top", "k", 5, "number of results")
	return cmd
}

func modelsCmd() *cobra.Command {
	var validateFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List providers, role assignments and aliases",
		Long: `Lists providers and whether credentials are configured for them.

	Use --validate to check that every role in the pipeline config resolves to a known model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			aliases, err := config.LoadAliasesFromDir(cfg.ConfigDir)
			if err != nil {
				return fmt.Errorf("failed to load model aliases: %w", err)
			}

			if validateFlag {
				errs := aliases.ValidatePipelineConfig(cfg.Pipeline)
				if len(errs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "All pipeline roles resolve to valid models.")
					return nil
				}
				fmt.Fprintf(os.Stderr, "Found %d validation errors:\n", len(errs))
				for _, err := range errs {
					fmt.Fprintf(os.Stderr, "  - %s\n", err)
				}
				return fmt.Errorf("validation failed")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			providers := make([]string, 0, len(aliases.Providers))
			for name := range aliases.Providers {
				providers = append(providers, name)
			}
			sort.Strings(providers)
			for _, provider := range providers {
				status := "no key"
				if cfg.HasAdapter(provider) {
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, strings.Join(aliases.Providers[provider], ", "), status)
			}

			p := cfg.Pipeline
			fmt.Fprintln(w)
			fmt.Fprintln(w, "ROLE\tADAPTER\tMODEL")
			for _, role := range []struct {
				name   string
				target config.RouteTarget
			}{
				{pipeline.RoleEvaluator, p.Roles.Evaluator},
				{pipeline.RoleArbiter, p.Roles.Arbiter},
				{pipeline.RoleDrafter, p.Roles.Drafter},
				{pipeline.RoleValidator, p.Roles.Validator},
				{pipeline.RoleSummarizer, p.Roles.Summarizer},
				{pipeline.RoleDetector, p.Roles.Detector},
			} {
				t := p.Resolve(role.target)
				fmt.Fprintf(w, "%s\t%s\t%s\n", role.name, t.Adapter, aliases.Resolve(t.Model))
			}
			fmt.Fprintf(w, "embedding\t%s\t%s\n", p.Embedding.Provider, p.Embedding.Model)

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&validateFlag, "validate", false, "check every pipeline role resolves to a valid model")
	return cmd
}

// withService loads config, assembles the pipeline and runs fn with a context that is
// cancelled on interrupt.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *pipeline.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if inMemoryFlag {
		cfg.Pipeline.Store.InMemory = true
	}

	logFile := cfg.LogFile
	if logFileFlag != "" {
		logFile = logFileFlag
	}
	level := cfg.LogLevel
	if logLevelFlag != "" {
		level = config.ParseLogLevel(logLevelFlag)
	}
	logger, cleanup := config.SetupLogger(logFile, level)
	defer func() { _ = cleanup() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	svc, err := pipeline.New(ctx, cfg, pipeline.Options{Offline: offlineFlag, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("failed to close vector store", slog.String("error", err.Error()))
		}
	}()

	if err := fn(ctx, svc); err != nil {
		return err
	}
	if usageFlag {
		printUsage(os.Stderr, svc.Usage())
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithPipelineFile(configFile)
	}
	return config.Load()
}

// readInput decodes JSON or YAML from the named file, or from stdin when no file is given.
func readInput(args []string, v any) error {
	if len(args) > 0 && args[0] != "-" {
		return readFile(args[0], v)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	return decode(data, v, "stdin")
}

func readFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return decode(data, v, path)
}

func decode(data []byte, v any, source string) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return fmt.Errorf("%s: no input", source)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage(w io.Writer, report pipeline.UsageReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tPROMPT\tCOMPLETION\tTOTAL")
	roles := make([]string, 0, len(report.ByRole))
	for role := range report.ByRole {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		u := report.ByRole[role]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", role, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	}
	fmt.Fprintf(tw, "all\t%d\t%d\t%d\n", report.TotalUsage.PromptTokens, report.TotalUsage.CompletionTokens, report.TotalUsage.TotalTokens)
	_ = tw.Flush()
	fmt.Fprintf(w, "%d calls, %d failed, estimated %.4f %s\n", len(report.Calls), report.Failures, report.TotalAmount, report.Currency)
}
