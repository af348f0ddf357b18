package extract

import "errors"

// ErrNoReading indicates OCR produced no parseable numeric token.
// Callers treat this as "no reading this frame", never as fatal.
var ErrNoReading = errors.New("extract: no numeric reading")
