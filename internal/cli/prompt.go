package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	readersMu sync.Mutex
	readers   = map[io.Reader]*bufio.Reader{}
)

// lineReader returns one buffered reader per input so that consecutive
// prompts don't lose buffered bytes.
func lineReader(in io.Reader) *bufio.Reader {
	readersMu.Lock()
	defer readersMu.Unlock()
	r, ok := readers[in]
	if !ok {
		r = bufio.NewReader(in)
		readers[in] = r
	}
	return r
}

// promptLine prints prompt and reads one trimmed line.
func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := lineReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echo when stdin is a terminal,
// and as a plain line otherwise (pipes, tests).
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := promptLine(cmd, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return line, nil
}

// confirm asks a yes/no question; anything but y/yes is no.
func confirm(cmd *cobra.Command, prompt string) bool {
	answer, err := promptLine(cmd, prompt+" [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
