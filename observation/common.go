package observation

import "errors"

// ErrObservedFunctionPanicked is reported through Observation.Error when the function run by Observe panics.
var ErrObservedFunctionPanicked = errors.New("observed function panicked")
