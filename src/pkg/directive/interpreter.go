package directive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/gh-nvat/cargo-container/src/pkg/privilege"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "directive")

const Prefix = "cargo-container:"

const (
	KeySudo          = "sudo="
	KeyAptGetInstall = "apt-get-install="
	KeyError         = "error="
	KeyWarning       = "warning="
	KeyInfo          = "info="
)

// Interpreter consumes one tool invocation's stdout, routing directives and
// passing every other line through to Stdout.
type Interpreter struct {
	Tool    string
	Command string
	Request *privilege.Request
	Stdout  io.Writer
	Logger  *log.Entry

	sudoAnnotated bool
	stdoutClosed  bool
}

func NewInterpreter(tool, command string, request *privilege.Request, stdout io.Writer) *Interpreter {
	return &Interpreter{
		Tool:    tool,
		Command: command,
		Request: request,
		Stdout:  stdout,
	}
}

func (i *Interpreter) log() *log.Entry {
	l := i.Logger
	if l == nil {
		l = logger
	}
	return l.WithField("tool", i.Tool).WithField("command", i.Command)
}

// Consume reads r line by line until EOF. A broken pipe on either side ends
// interpretation cleanly.
func (i *Interpreter) Consume(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			i.HandleLine(line)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, syscall.EPIPE) {
			return nil
		}
		return fmt.Errorf("failed to read `%s` output: %w", i.Tool, err)
	}
}

// HandleLine interprets a single line, with or without its line ending.
func (i *Interpreter) HandleLine(raw string) {
	line := strings.TrimRight(raw, "\r\n")
	rest, ok := strings.CutPrefix(line, Prefix)
	if !ok {
		i.passthrough(raw)
		return
	}

	switch {
	case strings.HasPrefix(rest, KeySudo):
		i.sudo(strings.TrimPrefix(rest, KeySudo))
	case strings.HasPrefix(rest, KeyAptGetInstall):
		pkg := strings.TrimSpace(strings.TrimPrefix(rest, KeyAptGetInstall))
		if pkg == "" {
			i.log().Warn("empty apt-get-install directive")
			return
		}
		i.Request.AddPackage(pkg)
	case strings.HasPrefix(rest, KeyError):
		i.log().Error(strings.TrimPrefix(rest, KeyError))
	case strings.HasPrefix(rest, KeyWarning):
		i.log().Warn(strings.TrimPrefix(rest, KeyWarning))
	case strings.HasPrefix(rest, KeyInfo):
		i.log().Info(strings.TrimPrefix(rest, KeyInfo))
	default:
		i.log().WithField("line", line).Warn("unrecognized directive")
	}
}

func (i *Interpreter) sudo(command string) {
	if !i.sudoAnnotated {
		i.sudoAnnotated = true
		i.Request.AddComment(fmt.Sprintf("requested by `%s` (%s)", i.Tool, i.Command))
	}
	i.Request.AddCommand(command)
}

func (i *Interpreter) passthrough(raw string) {
	if i.stdoutClosed || i.Stdout == nil {
		return
	}
	if !strings.HasSuffix(raw, "\n") {
		raw += "\n"
	}
	if _, err := io.WriteString(i.Stdout, raw); err != nil {
		// Keep draining the tool so it never blocks on a full pipe.
		i.stdoutClosed = true
		if !errors.Is(err, syscall.EPIPE) {
			i.log().WithField("error", err).Warn("unable to forward tool output")
		}
	}
}
