package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid workflow status transition")
	ErrAmbiguousTree     = errors.New("phylo run has more than one tree output")
	ErrInvalidRole       = errors.New("invalid role")
)
