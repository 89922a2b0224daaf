package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schoolroster/roster-client/internal/core"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/navigation"
)

const browseHelp = `Commands:
  n, next            next page
  p, prev            previous page
  g, page N          go to page N
  size N             students per page
  s, search TEXT     filter by username (empty clears)
  l, level LEVEL     filter by level (empty clears)
  clear [search|level]
  b, back            previous location
  f, forward         next location
  open URL           open a deep link
  d, delete ID       delete a student
  r, reload          reload the page
  q, quit`

// newStudentsBrowseCmd creates the 'students browse' command.
func newStudentsBrowseCmd() *cobra.Command {
	var link string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Page through the roster interactively",
		Long: `Page through the roster interactively. Each view has a link that
'students list --url' or 'students browse --url' can reopen.

` + browseHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := signedInEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Stop()

			if link == "" {
				link = navigation.RouteStudents
			}
			if err := engine.History().Push(link); err != nil {
				return err
			}
			return browse(cmd, engine)
		},
	}

	cmd.Flags().StringVar(&link, "url", "", "Deep link to start from")

	return cmd
}

func browse(cmd *cobra.Command, engine *core.Engine) error {
	out := cmd.OutOrStdout()
	render(out, engine)

	for {
		line, err := promptLine(cmd, "> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		quit, err := runBrowseCommand(cmd, engine, line)
		if quit {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", friendly(err))
		}
		if !engine.Session().Authenticated() {
			return errors.New("session expired; run 'roster login' again")
		}
		render(out, engine)
	}
}

// runBrowseCommand executes one pager command. quit reports the user asked to leave.
func runBrowseCommand(cmd *cobra.Command, engine *core.Engine, line string) (quit bool, err error) {
	ctx := GetContext()
	list := engine.List()
	history := engine.History()

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "q", "quit", "exit":
		return true, nil
	case "h", "help", "?":
		fmt.Fprintln(cmd.OutOrStdout(), browseHelp)
		return false, nil
	case "n", "next":
		page := list.Page()
		if page != nil && page.Last {
			return false, errors.New("already on the last page")
		}
		return false, list.SetPage(ctx, list.Query().Page+1)
	case "p", "prev":
		q := list.Query()
		if q.Page == 0 {
			return false, errors.New("already on the first page")
		}
		return false, list.SetPage(ctx, q.Page-1)
	case "g", "page":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("page needs a number, got %q", arg)
		}
		return false, list.SetPage(ctx, n-1)
	case "size":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("size needs a number, got %q", arg)
		}
		return false, list.SetPageSize(ctx, n)
	case "s", "search":
		return false, list.SetFilters(ctx, arg, list.Query().Level)
	case "l", "level":
		level, err := models.ParseLevel(arg)
		if err != nil {
			return false, err
		}
		return false, list.SetFilters(ctx, list.Query().Search, level)
	case "clear":
		switch strings.ToLower(arg) {
		case "search":
			return false, list.ClearSearch(ctx)
		case "level":
			return false, list.ClearLevel(ctx)
		case "":
			return false, list.SetFilters(ctx, "", "")
		}
		return false, fmt.Errorf("clear what? %q", arg)
	case "b", "back":
		if !history.Back() {
			return false, errors.New("no previous location")
		}
		return false, nil
	case "f", "forward":
		if !history.Forward() {
			return false, errors.New("no next location")
		}
		return false, nil
	case "open":
		return false, history.Push(arg)
	case "d", "delete":
		id, err := parseID(arg)
		if err != nil {
			return false, err
		}
		if !confirm(cmd, fmt.Sprintf("Delete student %d?", id)) {
			return false, nil
		}
		return false, list.Delete(ctx, id)
	case "r", "reload":
		return false, list.Reload(ctx)
	}
	return false, fmt.Errorf("unknown command %q (type help)", name)
}

// render prints the current view: the page, the pager, and the link.
func render(w io.Writer, engine *core.Engine) {
	list := engine.List()
	loc := engine.History().Current()
	if loc.Path != navigation.RouteStudents || !list.Mounted() {
		fmt.Fprintf(w, "\n(%s)\n", loc)
		return
	}

	fmt.Fprintln(w)
	q := list.Query()
	if q.Search != "" || q.Level.IsSet() {
		fmt.Fprintf(w, "Filters: search=%q level=%q\n", q.Search, q.Level)
	}
	if page := list.Page(); page != nil {
		printStudents(w, page.Content)
		if numbers := list.PageNumbers(); len(numbers) > 0 {
			fmt.Fprintf(w, "Pages: %s\n", pager(numbers, q.Page))
		}
	}
	if err := list.Err(); err != nil {
		fmt.Fprintf(w, "Failed to load students: %v\n", friendly(err))
	}
	fmt.Fprintf(w, "Link: %s\n", loc)
}
