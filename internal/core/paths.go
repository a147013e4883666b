// Package core resolves where halp keeps its files: settings in ~/.halp.env,
// the log and the command journal under ~/.halp.
package core

import (
	"os"
	"path/filepath"
)

// Paths is resolved once per process from the user's home directory.
type Paths struct {
	HomeDir     string
	DataDir     string
	LogFile     string
	HistoryFile string
	EnvFile     string
}

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		defaultPaths = &Paths{
			HomeDir:     homeDir,
			DataDir:     filepath.Join(homeDir, ".halp"),
			LogFile:     filepath.Join(homeDir, ".halp", "halp.log"),
			HistoryFile: filepath.Join(homeDir, ".halp", "history.db"),
			EnvFile:     filepath.Join(homeDir, ".halp.env"),
		}

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

// HistoryFile is the sqlite journal of commands run by the shell tool.
func HistoryFile() string {
	ensureDefaultPaths()
	return defaultPaths.HistoryFile
}

// EnvFile holds BASE_URL, API_KEY and DEFAULT_MODEL as KEY=VALUE lines.
func EnvFile() string {
	ensureDefaultPaths()
	return defaultPaths.EnvFile
}

// ResetPaths clears the cached paths, forcing them to be reinitialized.
// This is primarily used for testing purposes.
func ResetPaths() {
	defaultPaths = nil
}
