package farms

import "errors"

var (
	ErrFarmNotFound               = errors.New("Farm not found")
	ErrMissingPrimaryLocation     = errors.New("primary_location is required")
	ErrInsufficientBoundaryPoints = errors.New("At least 3 boundary points are required to build a boundary")
)
