package loader

import (
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// LoadError describes a state document that could not be loaded.
type LoadError struct {
	Path    string
	Format  Format
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(path string, format Format, err error) *LoadError {
	return &LoadError{
		Path:    path,
		Format:  format,
		Message: err.Error(),
		Err:     err,
	}
}

// cueLoadError extracts position info from CUE errors.
func cueLoadError(path string, err error) *LoadError {
	loadErr := newLoadError(path, FormatCUE, err)

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return loadErr
	}

	first := errs[0]
	loadErr.Message = first.Error()
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}
