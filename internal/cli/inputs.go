package cli

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/me/mfalite/pkg/model"
)

func newInputsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inputs",
		Short: "Manage uploaded input files",
	}
	cmd.AddCommand(newInputsListCmd(), newInputsUploadCmd(), newInputsDeleteCmd())
	return cmd
}

func newInputsListCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List input files",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireIdentity()
			if err != nil {
				return err
			}
			if userID == "" {
				userID = u.ID
			}

			resp, err := client.Get(cmd.Context(), "/inputs?user_id="+userID)
			if err != nil {
				return fmt.Errorf("list inputs: %w", err)
			}
			var files []model.InputFile
			if !resp.NoContent {
				if err := resp.Decode(&files); err != nil {
					return fmt.Errorf("parse inputs: %w", err)
				}
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No input files found.")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s  %-32s  %-10s  %s\n", "ID", "FILENAME", "SIZE", "UPLOADED")
			for _, f := range files {
				uploaded := humanize.Time(time.UnixMilli(f.UploadDate))
				fmt.Fprintf(out, "%-28s  %-32s  %-10s  %s\n",
					f.ID, f.Filename, humanize.Bytes(uint64(f.Size)), uploaded)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "List another user's files (admin)")
	return cmd
}

func newInputsUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.xlsx>",
		Short: "Upload an input file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireIdentity()
			if err != nil {
				return err
			}

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read input file: %w", err)
			}

			req := model.UploadRequest{
				ID:         u.ID + "-" + uuid.NewString(),
				Filename:   filepath.Base(path),
				UserID:     u.ID,
				UploadDate: time.Now().UnixMilli(),
				Data:       base64.StdEncoding.EncodeToString(data),
			}
			logger.Info("uploading input file", "filename", req.Filename, "size", len(data))

			resp, err := client.Post(cmd.Context(), "/upload-file-content", req)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			var stored model.InputFile
			if err := resp.Decode(&stored); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as %s\n", stored.Filename, stored.ID)
			return nil
		},
	}
}

func newInputsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <input_id>",
		Short: "Delete an input file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireIdentity(); err != nil {
				return err
			}
			if _, err := client.Delete(cmd.Context(), "/input/"+args[0]); err != nil {
				return fmt.Errorf("delete input: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted input %s\n", args[0])
			return nil
		},
	}
}
