package extract

import (
	"strconv"
	"strings"
)

// Options control the OCR engine for an Extractor.
type Options struct {
	Language  string // tessdata language, e.g. "eng"
	PSM       int    // page segmentation mode
	Whitelist string // allowed characters, empty for no restriction
}

// DefaultOptions returns single-line digit recognition defaults.
func DefaultOptions() Options {
	return Options{
		Language:  "eng",
		PSM:       7,
		Whitelist: "0123456789.-",
	}
}

// ParseOptions reads a tuning string in the flag form used by the
// config file, e.g.
//
//	--psm 7 -c tessedit_char_whitelist=0123456789.-°CF
//
// Unknown tokens are ignored; anything not given keeps its default.
func ParseOptions(tuning string) Options {
	opts := DefaultOptions()

	fields := strings.Fields(tuning)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "--psm":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil {
					opts.PSM = n
				}
				i++
			}
		case "-l":
			if i+1 < len(fields) {
				opts.Language = fields[i+1]
				i++
			}
		case "-c":
			if i+1 < len(fields) {
				if v, ok := strings.CutPrefix(fields[i+1], "tessedit_char_whitelist="); ok {
					opts.Whitelist = v
				}
				i++
			}
		}
	}

	return opts
}
