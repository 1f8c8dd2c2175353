package privilege

import (
	"sort"
	"strings"
)

// Line is one line of the pending privileged script.
type Line struct {
	Comment bool
	Text    string
}

// Request accumulates privileged work for a single top-level command. It is
// owned by one command and appended to sequentially by each tool invocation.
type Request struct {
	Lines    []Line
	packages map[string]struct{}
}

func NewRequest() *Request {
	return &Request{packages: make(map[string]struct{})}
}

// AddComment appends an annotation line.
func (r *Request) AddComment(text string) {
	r.Lines = append(r.Lines, Line{Comment: true, Text: text})
}

// AddCommand appends a command line to run with elevated rights.
func (r *Request) AddCommand(text string) {
	r.Lines = append(r.Lines, Line{Text: text})
}

// AddPackage records a package install request. It reports whether name
// was new.
func (r *Request) AddPackage(name string) bool {
	if r.packages == nil {
		r.packages = make(map[string]struct{})
	}
	if _, ok := r.packages[name]; ok {
		return false
	}
	r.packages[name] = struct{}{}
	return true
}

// Packages returns the requested packages in sorted order.
func (r *Request) Packages() []string {
	pkgs := make([]string, 0, len(r.packages))
	for p := range r.packages {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)
	return pkgs
}

// Commands returns the non-comment lines.
func (r *Request) Commands() []string {
	var cmds []string
	for _, l := range r.Lines {
		if !l.Comment {
			cmds = append(cmds, l.Text)
		}
	}
	return cmds
}

// Empty reports whether there is nothing to run.
func (r *Request) Empty() bool {
	return len(r.Commands()) == 0 && len(r.packages) == 0
}

func (r *Request) prepend(lines ...Line) {
	r.Lines = append(append([]Line{}, lines...), r.Lines...)
}

// String renders the script as it is shown to the user.
func (r *Request) String() string {
	var b strings.Builder
	for _, l := range r.Lines {
		if l.Comment {
			b.WriteString("# ")
		}
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
