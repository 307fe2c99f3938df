package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quillsh/quill/internal/agent"
	"github.com/quillsh/quill/internal/config"
	"github.com/quillsh/quill/internal/functions"
	"github.com/quillsh/quill/internal/llm"
	"github.com/quillsh/quill/internal/memory"
	"github.com/quillsh/quill/internal/reflector"
	"github.com/quillsh/quill/internal/tools"
	"github.com/quillsh/quill/internal/types"
	"github.com/quillsh/quill/internal/ui"
)

var (
	configPath string
	verbose    bool
	reflectOn  bool
	reflectOff bool
)

var rootCmd = &cobra.Command{
	Use:   "quill [query]",
	Short: "AI coding agent in your terminal",
	Long: `quill is a CLI coding agent: it sends your request to an
OpenAI-compatible model, lets the model call local tools (files, shell,
search, and more), and loops until the model produces an answer.

Usage:
  quill                           # interactive session
  quill "create hello.py and run it"`,

	Run: func(cmd *cobra.Command, args []string) {
		if len(args) > 0 {
			runOneShot(strings.Join(args, " "))
			return
		}
		runInteractive()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().BoolVar(&reflectOn, "reflect", false, "Run the reflection pass on final answers")
	rootCmd.Flags().BoolVar(&reflectOff, "no-reflect", false, "Skip the reflection pass")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}

func runInteractive() {
	agentInstance, cfg, logger := initAgent()
	defer logger.Sync()

	fmt.Print(lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Render("Connecting to model... "))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err := agentInstance.Ping(ctx)
	cancel()
	if err != nil {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Render("✗"))
		fmt.Println()
		printConnectionHelp(cfg, err)
		os.Exit(1)
	}
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render("✓"))

	model := ui.NewModel(ui.Callbacks{
		ProcessQuery: agentInstance.ProcessQueryCmd,
		ToolManifest: agentInstance.ToolManifest,
		ClearHistory: agentInstance.ClearHistory,
		ModelInfo:    agentInstance.LLMInfo(),
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	agentInstance.SetOnEvent(func(event types.AgentEvent) {
		p.Send(event)
	})

	if _, err := p.Run(); err != nil {
		printError("UI failed", err)
		os.Exit(1)
	}
}

func runOneShot(query string) {
	agentInstance, _, logger := initAgent()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	answer, err := agentInstance.ProcessQuery(ctx, query)
	if err != nil {
		printError("query failed", err)
		os.Exit(1)
	}
	fmt.Println(answer)
}

// initAgent loads configuration, wires the tool registry, memory, and
// reflection, and returns a ready agent.
func initAgent() (*agent.Agent, *config.Config, *zap.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		printError("could not load config", err)
		os.Exit(1)
	}

	if reflectOn {
		cfg.Reflection.Enabled = true
	}
	if reflectOff {
		cfg.Reflection.Enabled = false
	}
	cfg.Verbose = verbose

	if err := cfg.Validate(); err != nil {
		printError("configuration", err)
		os.Exit(1)
	}

	logger := createLogger()
	client := llm.NewClient(cfg, logger)

	registry := tools.NewRegistry()
	functions.RegisterAll(registry, cfg)

	store := memory.NewStore(cfg.HistoryLimit)
	memoryPath := ""
	if cfg.PersistMemory {
		path, err := config.MemoryPath()
		if err == nil {
			memoryPath = path
			if err := store.Load(path); err != nil {
				logger.Warn("could not load persisted memory", zap.Error(err))
			}
		}
	}

	reflectionClient := client.WithParams(cfg.Reflection.Temperature, cfg.Reflection.MaxTokens)
	reflect := reflector.New(reflectionClient, cfg.Reflection.Enabled, logger)

	agentInstance, err := agent.New(agent.Config{
		AppConfig:  cfg,
		Client:     client,
		Registry:   registry,
		Memory:     store,
		Reflector:  reflect,
		Logger:     logger,
		MemoryPath: memoryPath,
	})
	if err != nil {
		printError("failed to initialize agent", err)
		os.Exit(1)
	}
	return agentInstance, cfg, logger
}

func createLogger() *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func printError(msg string, err error) {
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).
		Render(fmt.Sprintf("Error: %s: %v", msg, err)))
}

func printConnectionHelp(cfg *config.Config, err error) {
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	cmdStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	fmt.Println(errStyle.Render("Could not reach the model at " + cfg.BaseURL))
	fmt.Println(helpStyle.Render(err.Error()))
	fmt.Println()
	fmt.Println(helpStyle.Render("Check your API key:"))
	fmt.Println(cmdStyle.Render("  export OPENAI_API_KEY=sk-..."))
	fmt.Println()
	fmt.Println(helpStyle.Render("Or point quill at another endpoint:"))
	fmt.Println(cmdStyle.Render("  export LLM_BASE_URL=http://localhost:11434/v1"))
}
