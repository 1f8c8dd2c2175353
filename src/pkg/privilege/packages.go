package privilege

import (
	"fmt"
	"sort"
	"strings"
)

// PackageManager knows how to install packages and refresh the package index.
type PackageManager struct {
	Name    string
	Install string
	Refresh string
}

var packageManagers = map[string]PackageManager{
	"apt-get": {Name: "apt-get", Install: "apt-get install -y", Refresh: "apt-get update"},
	"apt":     {Name: "apt", Install: "apt install -y", Refresh: "apt update"},
	"dnf":     {Name: "dnf", Install: "dnf install -y", Refresh: "dnf makecache"},
	"yum":     {Name: "yum", Install: "yum install -y", Refresh: "yum makecache"},
	"zypper":  {Name: "zypper", Install: "zypper --non-interactive install", Refresh: "zypper refresh"},
	"pacman":  {Name: "pacman", Install: "pacman -S --noconfirm", Refresh: "pacman -Sy"},
	"apk":     {Name: "apk", Install: "apk add", Refresh: "apk update"},
}

// DefaultPackageManager is used when none is configured.
const DefaultPackageManager = "apt-get"

// LookupPackageManager returns the package manager called name.
func LookupPackageManager(name string) (PackageManager, error) {
	if name == "" {
		name = DefaultPackageManager
	}
	pm, ok := packageManagers[name]
	if !ok {
		names := make([]string, 0, len(packageManagers))
		for n := range packageManagers {
			names = append(names, n)
		}
		sort.Strings(names)
		return PackageManager{}, fmt.Errorf("unknown package manager %q (expected one of %s)", name, strings.Join(names, ", "))
	}
	return pm, nil
}

// InstallLine returns the single command installing pkgs.
func (pm PackageManager) InstallLine(pkgs []string) string {
	return pm.Install + " " + strings.Join(pkgs, " ")
}

// LooksLikePackageManager reports whether cmd invokes a known package manager.
func LooksLikePackageManager(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) > 0 && fields[0] == "sudo" {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return false
	}
	_, ok := packageManagers[fields[0]]
	return ok
}
