package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(uploadCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a file to the configured bucket and print a download link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		if err := cfg.ValidateStorage(); err != nil {
			return err
		}

		uploader, err := newUploader(cfg)
		if err != nil {
			return err
		}
		url, err := uploader.Upload(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("upload %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}
