package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module has been administratively paused.
// Read-only queries are never gated; only state-mutating entry points consult
// the view.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the supplied module is paused. A nil view
// or empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
