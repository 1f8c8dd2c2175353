package runner

import "fmt"

// Command is a top-level verb that prepares the workspace and forwards to
// every selected tool.
type Command struct {
	Name    string
	Aliases []string
	Short   string
	Verbing string
	// OkNone commands succeed even when no crate x tool combination built.
	OkNone bool
	// Cargo, when set, is run as `cargo <Cargo>` after all tools.
	Cargo string
}

var Commands = []Command{
	{Name: "bench", Verbing: "Benchmarking", Short: "Prepare workspace and use tools to benchmark the crates"},
	{Name: "build", Aliases: []string{"b"}, Verbing: "Building", Short: "Prepare workspace and use tools to build the crates"},
	{Name: "check", Aliases: []string{"c"}, Verbing: "Checking", OkNone: true, Cargo: "check", Short: "Prepare workspace and use tools to verify the crates compile"},
	{Name: "doc", Verbing: "Documenting", Short: "Prepare workspace and use tools to document the crates"},
	{Name: "fetch", Verbing: "Fetching", OkNone: true, Cargo: "fetch", Short: "Prepare workspace and use tools to fetch the crates, then `cargo fetch`"},
	{Name: "fuzz", Verbing: "Fuzzing", Short: "Prepare workspace and use tools to fuzz-test the crates"},
	{Name: "package", Verbing: "Packaging", Short: "Prepare workspace and use tools to package the crates"},
	{Name: "run", Aliases: []string{"r"}, Verbing: "Running", Short: "Prepare workspace and use tools to run the crates"},
	{Name: "setup", Verbing: "Setting up", OkNone: true, Short: "Prepare workspace and let tools install what they need"},
	{Name: "test", Aliases: []string{"t"}, Verbing: "Testing", Short: "Prepare workspace and use tools to test the crates"},
	{Name: "update", Verbing: "Updating", Short: "Prepare workspace and use tools to update dependencies"},
}

// NotImplemented lists cargo verbs that are recognized but not supported yet.
var NotImplemented = []string{"generate-lockfile", "vendor", "init", "install", "new", "uninstall", "publish"}

// LookupCommand finds a command by name or alias.
func LookupCommand(name string) (Command, error) {
	for _, c := range Commands {
		if c.Name == name {
			return c, nil
		}
		for _, a := range c.Aliases {
			if a == name {
				return c, nil
			}
		}
	}
	return Command{}, fmt.Errorf("unrecognized subcommand: %s", name)
}
