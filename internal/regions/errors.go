package regions

import "errors"

var (
	ErrRegionNotFound   = errors.New("Region not found")
	ErrInvalidHierarchy = errors.New("Invalid hierarchy")
	ErrHasDependents    = errors.New("Region has active children or farms")
	ErrDuplicateCode    = errors.New("Region code already exists in organization")
)
