package config

import "slices"

// Diff describes what changed between two configs. Only fields that can be
// safely hot-reloaded are tracked; provider or transport changes require a
// restart and are deliberately absent.
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SystemPromptChanged bool
	NewSystemPrompt     string

	BackchannelsChanged bool
	NewBackchannels     []string
}

// Any reports whether the diff contains at least one change.
func (d Diff) Any() bool {
	return d.LogLevelChanged || d.SystemPromptChanged || d.BackchannelsChanged
}

// Compare returns what changed between old and new that is safe to apply
// without restart.
func Compare(old, new *Config) Diff {
	d := Diff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Agent.SystemPrompt != new.Agent.SystemPrompt {
		d.SystemPromptChanged = true
		d.NewSystemPrompt = new.Agent.SystemPrompt
	}
	if !slices.Equal(old.Backchannels, new.Backchannels) {
		d.BackchannelsChanged = true
		d.NewBackchannels = new.Backchannels
	}

	return d
}
