package resolver

import "errors"

// Resolution error sentinels. Not-found is an expected outcome and must
// stay distinguishable from a path or identity that could not be resolved
// at all.
var (
	ErrNotFound   = errors.New("no document found")
	ErrResolution = errors.New("could not resolve identifier")
)
