package main

import (
	"fmt"

	"github.com/ethpandaops/fbupload/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	loginServer     string
	loginCredential string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check that a credential can log in",
	Long:  `Resolve the credential and authenticate against the server without uploading anything.`,
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginServer, "server", "",
		"FileBrowser base URL (defaults to server.url)")
	loginCmd.Flags().StringVar(&loginCredential, "credential", "",
		"Credential id to resolve from the configured store")

	_ = loginCmd.MarkFlagRequired("credential")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	uploader, err := upload.NewFromConfig(cmd.Context(), log, cfg)
	if err != nil {
		return fmt.Errorf("creating uploader: %w", err)
	}

	if err := uploader.Login(cmd.Context(), firstNonEmpty(loginServer, cfg.Server.URL), loginCredential); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "login ok")

	return nil
}
