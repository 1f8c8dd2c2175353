package template

// Embedded template names, relative to templates/.
const (
	FileNameGitignore      = "gitignore.tmpl"
	FileNameStubCargoToml  = "stub-cargo.toml.tmpl"
	FileNameStubLib        = "stub-lib.rs.tmpl"
	FileNameSudoScriptUnix = "sudo.sh.tmpl"
	FileNameSudoScriptWin  = "sudo.cmd.tmpl"
)
