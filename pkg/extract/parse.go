package extract

import (
	"regexp"
	"strconv"
)

// numberPattern matches a decimal token: optional leading minus,
// digits, optional fractional part.
var numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)

// ParseReading extracts the first numeric token from OCR text.
// Returns ErrNoReading when no token is found or it fails to parse.
func ParseReading(text string) (float64, error) {
	token := numberPattern.FindString(text)
	if token == "" {
		return 0, ErrNoReading
	}

	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, ErrNoReading
	}
	return v, nil
}
