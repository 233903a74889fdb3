package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"arbiter/internal/arbiter"
	"arbiter/internal/config"
	"arbiter/internal/llm"
	"arbiter/internal/server"
	"arbiter/internal/service"
	"arbiter/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "arbiterd",
	Short: "AI Arbiter - policy dispute arbitration service",
	Long: `arbiterd arbitrates disputes over a policy: an opposer claims the policy
was violated, a defender claims compliance, and an LLM-backed decision
engine weighs the submitted evidence and returns a structured decision
with reasoning and a confidence score.

Run "arbiterd serve" to expose the HTTP surface, or "arbiterd arbitrate"
to run a single arbitration from a JSON request file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd runs the HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the arbitration HTTP API",
	RunE:  runServe,
}

// arbitrateCmd runs one arbitration from a request file
var arbitrateCmd = &cobra.Command{
	Use:   "arbitrate [request.json]",
	Short: "Run a single arbitration from a JSON request file (or stdin)",
	Long: `Reads an ArbitrationRequest as JSON, runs the decision engine to a
single decision, and prints the result envelope as JSON. With no
argument the request is read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArbitrate,
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("arbiterd %s (agent %s)\n", service.ServiceVersion, service.AgentVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "arbiter.yaml", "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(arbitrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer svc.Cleanup()

	srv := server.New(svc, logger, server.Options{
		Addr:        cfg.Server.Addr,
		Version:     cfg.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	return srv.Run(ctx)
}

func runArbitrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var data []byte
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read request file: %w", err)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read request from stdin: %w", err)
		}
	}

	var req types.ArbitrationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestBudget())
	defer cancel()

	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer svc.Cleanup()

	envelope, err := svc.Arbitrate(ctx, &req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// buildService wires the configured LLM backend into an arbiter service.
// No live evidence channel exists in these modes; evidence requests resolve
// as unavailable and the engine defers to the caller instead.
func buildService(cfg *config.Config) (*service.ArbiterService, error) {
	client, err := llm.NewClient(&llm.ProviderConfig{
		Provider: llm.Provider(cfg.LLM.Provider),
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.GetLLMTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build LLM client: %w", err)
	}

	return service.New(client, nil, logger, service.Options{
		RequestBudget: cfg.GetRequestBudget(),
		Engine: arbiter.EngineConfig{
			MaxRounds:   cfg.Engine.MaxRounds,
			ToolTimeout: cfg.GetToolTimeout(),
		},
	}), nil
}
