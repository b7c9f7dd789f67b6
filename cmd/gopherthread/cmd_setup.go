package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gopherthread/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "gopherthread setup")
		fmt.Fprintln(out, "Press Enter to keep the value shown in brackets.")
		fmt.Fprintln(out)

		runSetup(bufio.NewScanner(cmd.InOrStdin()), out, cfg)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Configuration saved to", cfgPath)
		return nil
	},
}

// runSetup asks for the values a first chat needs. Secrets already set are
// offered masked and kept on empty input.
func runSetup(scanner *bufio.Scanner, out io.Writer, cfg *config.Config) {
	cfg.OpenAI.BaseURL = prompt(scanner, out, "OpenAI base URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.APIKey = promptSecret(scanner, out, "OpenAI API key", cfg.OpenAI.APIKey)
	cfg.Assistant.ID = prompt(scanner, out, "Assistant id", cfg.Assistant.ID)
	cfg.S3.Bucket = prompt(scanner, out, "S3 bucket (optional, enables download links)", cfg.S3.Bucket)
	if cfg.S3.Bucket != "" {
		cfg.S3.Region = prompt(scanner, out, "S3 region", cfg.S3.Region)
		cfg.S3.Endpoint = prompt(scanner, out, "S3 endpoint (optional)", cfg.S3.Endpoint)
	}
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, out io.Writer, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	return readOr(scanner, defaultVal)
}

func promptSecret(scanner *bufio.Scanner, out io.Writer, label, current string) string {
	if current != "" {
		shown := config.MaskSecrets(map[string]any{"openai.api_key": current})["openai.api_key"]
		fmt.Fprintf(out, "%s [%v]: ", label, shown)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	return readOr(scanner, current)
}

func readOr(scanner *bufio.Scanner, fallback string) string {
	if scanner.Scan() {
		if input := strings.TrimSpace(scanner.Text()); input != "" {
			return input
		}
	}
	return fallback
}
