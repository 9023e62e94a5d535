package model

import "github.com/rotisserie/eris"

// Error taxonomy shared by every layer. Callers wrap these with eris and
// test with errors.Is.
var (
	ErrUnsupportedFormat = eris.New("unsupported file format")
	ErrPermissionDenied  = eris.New("permission denied")
	ErrNotFound          = eris.New("not found")
	ErrValidation        = eris.New("validation error")
	ErrStorage           = eris.New("storage failure")
	ErrConflict          = eris.New("conflict")
)
