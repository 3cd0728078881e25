package main

import (
	"fmt"

	"github.com/ethpandaops/fbupload/pkg/outcome"
	"github.com/ethpandaops/fbupload/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	uploadServer     string
	uploadFile       string
	uploadDir        string
	uploadCredential string
	uploadStrategy   string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a file and print its access URL",
	Long: `Authenticate with the credential id, upload the file into the remote
directory and print the URL the file is served at.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadServer, "server", "",
		"FileBrowser base URL (defaults to server.url)")
	uploadCmd.Flags().StringVar(&uploadFile, "file", "",
		"Path to the local file to upload")
	uploadCmd.Flags().StringVar(&uploadDir, "dir", "",
		"Remote directory (defaults to transfer.remote_dir)")
	uploadCmd.Flags().StringVar(&uploadCredential, "credential", "",
		"Credential id to resolve from the configured store")
	uploadCmd.Flags().StringVar(&uploadStrategy, "strategy", "",
		"Transfer strategy: direct or resumable (defaults to transfer.strategy)")

	_ = uploadCmd.MarkFlagRequired("file")
	_ = uploadCmd.MarkFlagRequired("credential")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if uploadStrategy != "" {
		cfg.Transfer.Strategy = uploadStrategy

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}
	}

	uploader, err := upload.NewFromConfig(cmd.Context(), log, cfg)
	if err != nil {
		return fmt.Errorf("creating uploader: %w", err)
	}

	req := upload.Request{
		ServerURL:    firstNonEmpty(uploadServer, cfg.Server.URL),
		LocalPath:    uploadFile,
		RemoteDir:    firstNonEmpty(uploadDir, cfg.Transfer.RemoteDir),
		CredentialID: uploadCredential,
	}

	out := uploader.Run(cmd.Context(), req)
	if !out.Succeeded() {
		return uploadFailure{out.Err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), out.AccessURL)

	return nil
}

// uploadFailure prints as the one-line failure message and keeps the
// classified error reachable with errors.Is.
type uploadFailure struct {
	err *outcome.Error
}

func (f uploadFailure) Error() string {
	return f.err.Message()
}

func (f uploadFailure) Unwrap() error {
	return f.err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
