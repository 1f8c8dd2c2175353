package main

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/gh-nvat/cargo-container/src/internal/runner"
	"github.com/gh-nvat/cargo-container/src/pkg/settings"
)

func TestStripSubcommandName(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{args: []string{"container", "build"}, want: []string{"build"}},
		{args: []string{"build", "container"}, want: []string{"build", "container"}},
		{args: []string{}, want: []string{}},
	}
	for _, tt := range tests {
		if got := stripSubcommandName(tt.args); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("stripSubcommandName(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestRootCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "not implemented", args: []string{"publish"}, wantErr: "not yet implemented: publish"},
		{name: "unrecognized", args: []string{"frobnicate"}, wantErr: "unrecognized subcommand: frobnicate"},
		{name: "sudo flags conflict", args: []string{"build", "--allow-sudo", "--deny-sudo"}, wantErr: "allow-sudo"},
		{name: "stray argument", args: []string{"build", "extra"}, wantErr: "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			err := cmd.ExecuteContext(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Execute() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestExecute_ExitCode(t *testing.T) {
	if code := execute(context.Background(), []string{"container", "publish"}); code != 1 {
		t.Errorf("execute() = %d, want 1", code)
	}
	if code := execute(context.Background(), []string{"container", "version"}); code != 0 {
		t.Errorf("execute() = %d, want 0", code)
	}
}

func TestApplySettings(t *testing.T) {
	deny := false
	s := &settings.Settings{PackageManager: "dnf", SudoPolicy: "/etc/policy.rego", AllowSudo: &deny, Color: "never"}

	opts := &runner.Options{PackageManager: "zypper"}
	if err := applySettings(opts, s); err != nil {
		t.Fatal(err)
	}
	if opts.PackageManager != "zypper" {
		t.Errorf("flag value overridden: %q", opts.PackageManager)
	}
	if opts.SudoPolicy != "/etc/policy.rego" || opts.Color != "never" {
		t.Errorf("settings not applied: %+v", opts)
	}
	if opts.AllowSudo == nil || *opts.AllowSudo {
		t.Errorf("AllowSudo = %v, want deny from settings", opts.AllowSudo)
	}

	allow := true
	opts = &runner.Options{AllowSudo: &allow}
	if err := applySettings(opts, s); err != nil {
		t.Fatal(err)
	}
	if !*opts.AllowSudo {
		t.Error("--allow-sudo must win over settings")
	}
}
