package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "CLINIGRAPH_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "clinigraph.yaml"
	// ConfigDirName is the directory under the XDG and system config roots
	ConfigDirName = "clinigraph"

	dirFileName = "config.yaml"
)

// Source names the rule that selected a configuration
type Source string

const (
	SourceFlag     Source = "flag"
	SourceEnv      Source = "env"
	SourceWorkDir  Source = "workdir"
	SourceXDG      Source = "xdg"
	SourceHome     Source = "home"
	SourceSystem   Source = "system"
	SourceDefaults Source = "defaults"
)

// Location is a config file and the rule that found it. Defaults have no
// path.
type Location struct {
	Path   string
	Source Source
}

func (l Location) String() string {
	if l.Path == "" {
		return string(l.Source)
	}
	return fmt.Sprintf("%s (%s)", l.Path, l.Source)
}

// systemDir is the system-wide config root
var systemDir = "/etc"

// searchOrder lists the candidate files, highest priority first
func searchOrder() []Location {
	var out []Location
	if path := os.Getenv(EnvConfigPath); path != "" {
		out = append(out, Location{Path: path, Source: SourceEnv})
	}
	out = append(out, Location{Path: ConfigFileName, Source: SourceWorkDir})
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		out = append(out, Location{Path: filepath.Join(xdg, ConfigDirName, dirFileName), Source: SourceXDG})
	}
	if home := os.Getenv("HOME"); home != "" {
		out = append(out, Location{Path: filepath.Join(home, ".config", ConfigDirName, dirFileName), Source: SourceHome})
	}
	return append(out, Location{Path: filepath.Join(systemDir, ConfigDirName, dirFileName), Source: SourceSystem})
}

// Find resolves the config file. A non-empty explicit path (the --config
// flag) must exist; otherwise the first existing candidate of
// $CLINIGRAPH_CONFIG, ./clinigraph.yaml, $XDG_CONFIG_HOME/clinigraph,
// ~/.config/clinigraph and /etc/clinigraph wins, and no match means
// defaults.
func Find(explicit string) (Location, error) {
	if explicit != "" {
		if !isFile(explicit) {
			return Location{Path: explicit, Source: SourceFlag}, fmt.Errorf("config file %s not found", explicit)
		}
		return Location{Path: explicit, Source: SourceFlag}, nil
	}

	for _, loc := range searchOrder() {
		if !isFile(loc.Path) {
			continue
		}
		if abs, err := filepath.Abs(loc.Path); err == nil {
			loc.Path = abs
		}
		return loc, nil
	}
	return Location{Source: SourceDefaults}, nil
}

// DefaultPath returns where `config init` writes a new file: the XDG
// config home, then ~/.config, then the working directory.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, ConfigDirName, dirFileName)
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName, dirFileName)
	}
	return ConfigFileName
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
