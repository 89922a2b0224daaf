package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schoolroster/roster-client/internal/models"
)

// Output formats accepted by -o.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

// writeData encodes v as JSON or YAML.
func writeData(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to format YAML: %w", err)
		}
		return enc.Close()
	}
	return checkFormat(format)
}

// printStudents prints a table of students.
func printStudents(w io.Writer, students []models.Student) {
	if len(students) == 0 {
		fmt.Fprintln(w, "No students found.")
		return
	}

	idWidth, nameWidth := len("ID"), len("USERNAME")
	for _, s := range students {
		if n := len(fmt.Sprint(s.ID)); n > idWidth {
			idWidth = n
		}
		if len(s.Username) > nameWidth {
			nameWidth = len(s.Username)
		}
	}

	fmt.Fprintf(w, "%-*s  %-*s  %s\n", idWidth, "ID", nameWidth, "USERNAME", "LEVEL")
	for _, s := range students {
		fmt.Fprintf(w, "%-*d  %-*s  %s\n", idWidth, s.ID, nameWidth, s.Username, s.Level)
	}
}

// printPage prints a page of students with its position.
func printPage(w io.Writer, page *models.Page[models.Student]) {
	printStudents(w, page.Content)
	if page.TotalPages == 0 {
		return
	}
	fmt.Fprintf(w, "\nPage %d of %d (%d students)\n", page.Number+1, page.TotalPages, page.TotalElements)
}

// pager renders page numbers with the current one bracketed: 1 [2] 3.
func pager(numbers []int, current int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		if n == current {
			parts[i] = fmt.Sprintf("[%d]", n+1)
		} else {
			parts[i] = fmt.Sprint(n + 1)
		}
	}
	return strings.Join(parts, " ")
}
