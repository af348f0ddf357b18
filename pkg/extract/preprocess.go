package extract

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Denoising parameters. Tuned for small seven-segment and LCD regions.
const (
	denoiseStrength     = 10
	denoiseTemplateSize = 7
	denoiseSearchSize   = 21
)

// Preprocess prepares a frame region for OCR: greyscale, automatic
// (Otsu) binarization, then denoising. The caller owns the returned
// Mat and must Close it.
func Preprocess(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if src.Channels() > 1 {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	} else {
		src.CopyTo(&gray)
	}

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	gray.Close()

	denoised := gocv.NewMat()
	gocv.FastNlMeansDenoisingWithParams(binary, &denoised, denoiseStrength, denoiseTemplateSize, denoiseSearchSize)
	binary.Close()

	return denoised
}

// encodePNG serializes a Mat to PNG bytes for the OCR engine.
func encodePNG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	defer buf.Close()

	// The buffer is backed by C memory; copy before it is released.
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}
