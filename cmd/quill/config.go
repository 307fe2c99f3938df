package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quillsh/quill/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create configuration",
	Long:  "Show the effective configuration or write a starter config file.",
	Run:   runConfig,
}

var (
	configInit bool
	configShow bool
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write a starter config file")
	configCmd.Flags().BoolVar(&configShow, "show", true, "Show the effective configuration")
}

func runConfig(cmd *cobra.Command, args []string) {
	if configInit {
		initConfigFile()
		return
	}
	if configShow {
		showConfig()
	}
}

func initConfigFile() {
	path, err := config.Path()
	if err != nil {
		printError("could not resolve config path", err)
		os.Exit(1)
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).
			Render(path + " already exists. Use --show to view it."))
		return
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		printError("failed to create config", err)
		os.Exit(1)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).
		Render("Created " + path + " with default settings."))
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - model and base_url")
	fmt.Println("  - max_iterations and history_limit")
	fmt.Println("  - the reflection pass")
	fmt.Println("\nThe API key is read from the environment (OPENAI_API_KEY or LLM_API_KEY).")
}

func showConfig() {
	cfg, err := config.Load(configPath)
	if err != nil {
		defaults := config.DefaultConfig()
		cfg = &defaults
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).
			Render("No usable config found. Showing defaults:\n"))
	} else {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true).
			Render("Effective configuration:\n"))
	}

	display := *cfg
	display.APIKey = maskSecret(display.APIKey)

	data, err := yaml.Marshal(display)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(string(data))

	if path, err := config.Path(); err == nil {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).
			Render("Config file: " + path))
	}
}

// maskSecret keeps enough of a key to recognize it, nothing more.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 8) + s[len(s)-4:]
}
