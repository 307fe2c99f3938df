package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillsh/quill/internal/config"
	"github.com/quillsh/quill/internal/functions"
	"github.com/quillsh/quill/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools",
	Long: `List the tools the agent can call.

The model picks tools on its own while answering; this listing is the
same manifest it sees.

Examples:
  quill tools            # names and descriptions
  quill tools --verbose  # parameter details`,
	Run: func(cmd *cobra.Command, args []string) {
		runTools()
	},
}

func runTools() {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	toolStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))

	paramStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#06B6D4"))

	registry := tools.NewRegistry()
	cfg := config.DefaultConfig()
	functions.RegisterAll(registry, &cfg)

	fmt.Println(headerStyle.Render("Available Tools"))
	fmt.Println()

	for _, tool := range registry.All() {
		fmt.Printf("  %s\n", toolStyle.Render(tool.Name))
		fmt.Printf("    %s\n", descStyle.Render(tool.Description))

		if verbose && len(tool.Params) > 0 {
			fmt.Println("    Parameters:")
			for _, p := range tool.Params {
				req := ""
				if p.Required {
					req = " (required)"
				}
				fmt.Printf("      %s%s\n", paramStyle.Render(p.Name), req)
				if p.Description != "" {
					fmt.Printf("        %s\n", descStyle.Render(p.Description))
				}
			}
		}
	}

	fmt.Println()
	fmt.Println(descStyle.Render(fmt.Sprintf("  Total: %d tools available", registry.Len())))
	if !verbose {
		fmt.Println(descStyle.Render("  Use --verbose for parameter details"))
	}
}
