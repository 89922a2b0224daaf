package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/schoolroster/roster-client/internal/api"
	"github.com/schoolroster/roster-client/internal/core"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/navigation"
)

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in; run 'roster login' first")

// newStudentsCmd creates the 'students' command group.
func newStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "students",
		Aliases: []string{"student", "st"},
		Short:   "List and manage students",
		Long: `Student roster commands.

Commands:
  list    - Show one page of students
  get     - Show one student
  create  - Add a student
  update  - Change a student's username or level
  delete  - Remove a student
  browse  - Page through the roster interactively
  import  - Upload a CSV file of students
  export  - Download the roster as students.csv`,
	}

	cmd.AddCommand(newStudentsListCmd())
	cmd.AddCommand(newStudentsGetCmd())
	cmd.AddCommand(newStudentsCreateCmd())
	cmd.AddCommand(newStudentsUpdateCmd())
	cmd.AddCommand(newStudentsDeleteCmd())
	cmd.AddCommand(newStudentsBrowseCmd())
	cmd.AddCommand(newStudentsImportCmd())
	cmd.AddCommand(newStudentsExportCmd())

	return cmd
}

// signedInEngine starts an engine that restores the saved session and fails
// when there is none.
func signedInEngine(cmd *cobra.Command) (*core.Engine, error) {
	engine, err := startEngine(cmd, "")
	if err != nil {
		return nil, err
	}
	if !engine.Session().Authenticated() {
		engine.Stop()
		return nil, errNotSignedIn
	}
	return engine, nil
}

// friendly replaces gateway errors with the backend's message when it sent one,
// and turns a 401 into a hint to sign in again.
func friendly(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return errors.New("session expired; run 'roster login' again")
	}
	if msg := api.Message(err); msg != "" {
		return errors.New(msg)
	}
	return err
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid student ID %q", arg)
	}
	return id, nil
}

// newStudentsListCmd creates the 'students list' command.
func newStudentsListCmd() *cobra.Command {
	var (
		page   int
		size   int
		search string
		level  string
		link   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of students",
		Long: `Show one page of students, optionally filtered by username and level.

Pages are numbered from 1 on the command line. A deep link copied from
'students browse' can be given with --url instead of the individual flags.

Examples:
  roster students list
  roster students list --page 2 --size 10
  roster students list --search ann --level L2
  roster students list --url '/students?page=1&size=5&level=M1'
  roster students list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}

			engine, err := signedInEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Stop()

			target := link
			if target == "" {
				if page < 1 {
					return fmt.Errorf("--page must be at least 1, got %d", page)
				}
				q := models.ListQuery{Page: page - 1, Size: engine.GetConfig().PageSize, Search: search}
				if size > 0 {
					q.Size = size
				}
				if q.Level, err = models.ParseLevel(level); err != nil {
					return err
				}
				target = navigation.ListLink(q)
			} else if loc, err := navigation.ParseLocation(link); err != nil {
				return err
			} else if loc.Path != navigation.RouteStudents {
				return fmt.Errorf("--url must point at %s, got %s", navigation.RouteStudents, loc.Path)
			}

			// Opening the route mounts the list, which loads the page
			if err := engine.History().Push(target); err != nil {
				return err
			}
			list := engine.List()
			if err := list.Err(); err != nil {
				return friendly(err)
			}
			current := list.Page()
			if current == nil {
				return errNotSignedIn
			}

			out := cmd.OutOrStdout()
			if output != formatTable {
				return writeData(out, output, current)
			}
			printPage(out, current)
			fmt.Fprintf(out, "Link: %s\n", engine.History().Current())
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number (from 1)")
	cmd.Flags().IntVarP(&size, "size", "s", 0, "Students per page (default from config)")
	cmd.Flags().StringVar(&search, "search", "", "Filter by username")
	cmd.Flags().StringVar(&level, "level", "", "Filter by level ("+models.LevelNames()+")")
	cmd.Flags().StringVar(&link, "url", "", "Deep link to open instead of the flags above")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")

	return cmd
}

// newStudentsGetCmd creates the 'students get' command.
func newStudentsGetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := signedInEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Stop()

			student, err := engine.API().GetStudent(GetContext(), id)
			if err != nil {
				return friendly(err)
			}
			if output != formatTable {
				return writeData(cmd.OutOrStdout(), output, student)
			}
			printStudents(cmd.OutOrStdout(), []models.Student{*student})
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")

	return cmd
}

// studentFlags are shared by create and update.
type studentFlags struct {
	username string
	level    string
}

func (f *studentFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.username, "username", "u", "", "Username")
	fs.StringVarP(&f.level, "level", "l", "", "Level ("+models.LevelNames()+")")
}

func (f *studentFlags) request() (models.StudentRequest, error) {
	level, err := models.ParseLevel(f.level)
	if err != nil {
		return models.StudentRequest{}, err
	}
	return models.StudentRequest{Username: f.username, Level: level}, nil
}

// newStudentsCreateCmd creates the 'students create' command.
func newStudentsCreateCmd() *cobra.Command {
	var flags studentFlags

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Add a student",
		Example: `  roster students create --username ann --level L1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}

			engine, err := signedInEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Stop()

			saved, err := engine.List().CreateOrUpdate(GetContext(), req, nil)
			if err != nil {
				return friendly(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created student %d (%s, %s)\n", saved.ID, saved.Username, saved.Level)
			return nil
		},
	}
	flags.register(cmd.Flags())

	return cmd
}

// newStudentsUpdateCmd creates the 'students update' command.
func newStudentsUpdateCmd() *cobra.Command {
	var flags studentFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a student's username or level",
		Long: `Change a student's username or level. A flag left out keeps the
current value.`,
		Example: `  roster students update 12 --level M1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if flags.username == "" && flags.level == "" {
				return errors.New("nothing to update: give --username and/or --level")
			}

			engine, err := signedInEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Stop()

			current, err := engine.API().GetStudent(GetContext(), id)
			if err != nil {
				return friendly(err)
			}
			if flags.username == "" {
				flags.username = current.Username
			}
			if flags.level == "" {
				flags.level = current.Level.String()
			}
			req, err := flags.request()
			if err != nil {
				return err
			}

			saved, err := engine.List().CreateOrUpdate(GetContext(), req, &id)
			if err != nil {
				return friendly(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated student %d (%s, %s)\n", saved.ID, saved.Username, saved.Level)
			return nil
		},
	}
	flags.register(cmd.Flags())

	return cmd
}

// newStudentsDeleteCmd creates the 'students delete' command.
func newStudentsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := signedInEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Stop()

			if !yes && !confirm(cmd, fmt.Sprintf("Delete student %d?", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			if err := engine.List().Delete(GetContext(), id); err != nil {
				return friendly(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted student %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Don't ask for confirmation")

	return cmd
}
