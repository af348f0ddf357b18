// Package extract turns a cropped frame region into a temperature
// reading. The pipeline is greyscale, Otsu binarization, denoise,
// OCR constrained to a digit character set, then first-number parse.
package extract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// Reading is a single extracted value with the OCR text it came from.
type Reading struct {
	Value float64 `json:"value"`
	Raw   string  `json:"raw"`
}

// Extractor runs OCR over frame regions. Safe for concurrent use;
// the underlying engine client is serialized internally.
type Extractor struct {
	opts   Options
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates an Extractor with the given options.
func New(opts Options) (*Extractor, error) {
	if opts.Language == "" {
		opts.Language = DefaultOptions().Language
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(opts.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR whitelist: %w", err)
		}
	}
	if opts.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PSM)); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR segmentation mode: %w", err)
		}
	}

	return &Extractor{opts: opts, client: client}, nil
}

// ReadRegion runs the full pipeline on a cropped region and returns
// the reading. The Raw text is populated even when the value could
// not be parsed, so callers can surface what the engine saw.
func (x *Extractor) ReadRegion(region gocv.Mat) (Reading, error) {
	if region.Empty() {
		return Reading{}, fmt.Errorf("extract: empty region")
	}

	processed := Preprocess(region)
	defer processed.Close()

	png, err := encodePNG(processed)
	if err != nil {
		return Reading{}, err
	}

	text, err := x.Recognize(png)
	if err != nil {
		return Reading{}, fmt.Errorf("ocr failed: %w", err)
	}

	reading := Reading{Raw: strings.TrimSpace(text)}
	value, err := ParseReading(text)
	if err != nil {
		return reading, err
	}
	reading.Value = value
	return reading, nil
}

// Recognize runs OCR over encoded image bytes and returns the text.
func (x *Extractor) Recognize(img []byte) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.client == nil {
		return "", fmt.Errorf("extract: extractor is closed")
	}
	if err := x.client.SetImageFromBytes(img); err != nil {
		return "", err
	}
	return x.client.Text()
}

// Options returns the options the extractor was built with.
func (x *Extractor) Options() Options {
	return x.opts
}

// Close releases the OCR engine client.
func (x *Extractor) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.client == nil {
		return nil
	}
	err := x.client.Close()
	x.client = nil
	return err
}

// Probe verifies the OCR engine and the given language data are
// installed. Called at startup, before any camera access.
func Probe(language string) error {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("ocr engine unavailable: %w", err)
	}
	for _, l := range langs {
		if l == language {
			return nil
		}
	}
	return fmt.Errorf("ocr language %q not installed (available: %s)", language, strings.Join(langs, ", "))
}
