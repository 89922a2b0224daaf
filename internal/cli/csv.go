package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/schoolroster/roster-client/internal/progress"
	"github.com/schoolroster/roster-client/internal/transfer"
)

// newStudentsImportCmd creates the 'students import' command.
func newStudentsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Upload a CSV file of students",
		Long: `Upload a CSV file of students. The first line is a header and each
following line is "username,level", for example:

  username,level
  ann,L1
  bob,M2

The server rejects the whole file when any username already exists.
Use - to read the file from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := selectImport(cmd, args[0])
			if err != nil {
				return err
			}

			engine, err := signedInEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Stop()

			coordinator := engine.Transfers()
			coordinator.SetProgressFactory(func(transfer.TaskType, string) progress.Reporter {
				return progress.ForTerminal()
			})

			message, err := coordinator.ImportFile(GetContext(), file)
			if err != nil {
				if notice, ok := engine.Notices().Current(); ok {
					return errors.New(notice.Message)
				}
				return friendly(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}

	return cmd
}

// selectImport picks the file to upload; "-" reads standard input.
func selectImport(cmd *cobra.Command, arg string) (*transfer.SelectedFile, error) {
	if arg != "-" {
		return transfer.SelectPath(arg)
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("failed to read standard input: %w", err)
	}
	return transfer.SelectBytes("stdin.csv", data), nil
}

// newStudentsExportCmd creates the 'students export' command.
func newStudentsExportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the roster as students.csv",
		Long: `Download the whole roster as students.csv into the current directory
(or --dir). An existing students.csv is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(cmd, dir)
			if err != nil {
				return err
			}
			defer engine.Stop()
			if err := engine.Start(""); err != nil {
				return err
			}
			if !engine.Session().Authenticated() {
				return errNotSignedIn
			}

			coordinator := engine.Transfers()
			coordinator.SetProgressFactory(func(transfer.TaskType, string) progress.Reporter {
				return progress.ForTerminal()
			})

			path, err := coordinator.ExportAll(GetContext())
			if err != nil {
				if notice, ok := engine.Notices().Current(); ok {
					return fmt.Errorf("%s: %w", notice.Message, friendly(err))
				}
				return friendly(err)
			}
			engine.Desktop().ExportSaved(path)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported students to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to save students.csv in")

	return cmd
}
