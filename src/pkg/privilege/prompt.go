package privilege

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gh-nvat/cargo-container/src/pkg/status"
)

// TerminalPrompter shows the script and reads a yes/no answer.
type TerminalPrompter struct {
	In  *bufio.Reader
	Out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{In: bufio.NewReader(in), Out: out}
}

// Confirm defaults to no. A read error, including end of input, is returned
// alongside false.
func (p *TerminalPrompter) Confirm(script string) (bool, error) {
	fmt.Fprintln(p.Out, "The following commands need administrator rights:")
	fmt.Fprintln(p.Out)
	for _, line := range strings.Split(strings.TrimRight(script, "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			line = status.Comment(line)
		}
		fmt.Fprintf(p.Out, "    %s\n", line)
	}
	fmt.Fprintln(p.Out)

	for {
		fmt.Fprint(p.Out, "Run them now? [y/N]: ")
		response, err := p.In.ReadString('\n')
		if err != nil && (response == "" || err != io.EOF) {
			fmt.Fprintln(p.Out)
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(response)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
		if err != nil {
			return false, err
		}
		fmt.Fprintln(p.Out, "Please answer y or n.")
	}
}
