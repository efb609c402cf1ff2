package audiobook

import "errors"

// Error kinds shared by every package. Callers attach them with
// fmt.Errorf("...: %w", ErrX) and test them with errors.Is.
var (
	// ErrConfig reports an unknown engine name or a malformed configuration file.
	ErrConfig = errors.New("configuration error")
	// ErrEngine reports an engine that failed to load or to synthesize a unit.
	ErrEngine = errors.New("engine error")
	// ErrProjectIO reports an unreadable project file or a missing project directory.
	ErrProjectIO = errors.New("project i/o error")
	// ErrFileBusy reports an audio file that stayed locked after all retries.
	ErrFileBusy = errors.New("file busy")
	// ErrExport reports a missing artifact or an audio probe failure during export.
	ErrExport = errors.New("export error")
	// ErrValidation reports an operation that is not allowed in the current state.
	ErrValidation = errors.New("validation error")
)
