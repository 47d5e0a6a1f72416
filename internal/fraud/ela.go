package fraud

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	// decoders registered with image.Decode
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image manipulation flags
const (
	FlagPossibleManipulation  = "POSSIBLE_MANIPULATION"
	FlagUniformManipulation   = "UNIFORM_MANIPULATION"
	FlagLocalizedManipulation = "LOCALIZED_MANIPULATION"
	FlagELAAnalysisFailed     = "ELA_ANALYSIS_FAILED"
)

const (
	elaQuality = 90

	elaManipulationThreshold = 0.15
	elaUniformThreshold      = 0.05
	elaUniformStdDev         = 5.0

	elaGridSize           = 8
	elaLocalizedCellShare = 0.10
	DefaultMaxImagePixels = 40_000_000
)

// ELADetector runs Error Level Analysis on a meter photo
type ELADetector struct {
	maxPixels int
}

// NewELADetector creates a detector that refuses images larger than maxPixels
func NewELADetector(maxPixels int) *ELADetector {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	return &ELADetector{maxPixels: maxPixels}
}

// Analyze re-encodes the image at a fixed JPEG quality and scores the reconstruction error.
// A broken analysis never penalizes the reading: it flags ELA_ANALYSIS_FAILED with score 0.
func (d *ELADetector) Analyze(data []byte) CheckResult {
	diff, width, height, err := d.errorLevels(data)
	if err != nil {
		result := newCheckResult()
		result.set(FlagELAAnalysisFailed, 0)
		return result
	}
	return scoreErrorLevels(diff, width, height)
}

// scoreErrorLevels applies the manipulation rules to a row-major RGB difference array
func scoreErrorLevels(diff []float64, width, height int) CheckResult {
	result := newCheckResult()

	mean, stddev := populationMeanStdDev(diff)
	elaScore := mean / 255
	result.detail("ela_score", elaScore)
	result.detail("diff_stddev", stddev)

	if elaScore > elaManipulationThreshold {
		result.set(FlagPossibleManipulation,
			math.Min(0.3+((elaScore-elaManipulationThreshold)/elaManipulationThreshold)*0.2, 0.5))
	}

	if stddev < elaUniformStdDev && elaScore > elaUniformThreshold {
		result.raise(FlagUniformManipulation, 0.25)
	}

	suspicious := suspiciousCells(diff, width, height, 2*mean)
	result.detail("suspicious_cells", float64(suspicious))
	if float64(suspicious) > elaLocalizedCellShare*elaGridSize*elaGridSize {
		result.raise(FlagLocalizedManipulation, 0.2)
	}

	return result
}

// errorLevels returns the per-channel absolute difference between the image and
// its re-encoded copy, laid out row-major as RGB triples.
func (d *ELADetector) errorLevels(data []byte) ([]float64, int, int, error) {
	if len(data) == 0 {
		return nil, 0, 0, fmt.Errorf("empty image")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > d.maxPixels {
		return nil, 0, 0, fmt.Errorf("unsupported image dimensions %dx%d", cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	original := toRGB(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, original, &jpeg.Options{Quality: elaQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to re-encode image: %w", err)
	}
	decoded, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode re-encoded image: %w", err)
	}
	resaved := toRGB(decoded)

	bounds := original.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	diff := make([]float64, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			a := original.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			b := resaved.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			diff = append(diff,
				absDiff(a.R, b.R),
				absDiff(a.G, b.G),
				absDiff(a.B, b.B),
			)
		}
	}

	return diff, width, height, nil
}

// toRGB drops alpha so the comparison only sees color channels
func toRGB(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

// suspiciousCells counts grid cells whose mean error exceeds threshold
func suspiciousCells(diff []float64, width, height int, threshold float64) int {
	count := 0
	for gy := 0; gy < elaGridSize; gy++ {
		y0, y1 := gy*height/elaGridSize, (gy+1)*height/elaGridSize
		for gx := 0; gx < elaGridSize; gx++ {
			x0, x1 := gx*width/elaGridSize, (gx+1)*width/elaGridSize
			if y1 <= y0 || x1 <= x0 {
				continue
			}

			sum := 0.0
			for y := y0; y < y1; y++ {
				row := y * width * 3
				for i := row + x0*3; i < row+x1*3; i++ {
					sum += diff[i]
				}
			}
			if sum/float64((y1-y0)*(x1-x0)*3) > threshold {
				count++
			}
		}
	}
	return count
}

func populationMeanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	sq := 0.0
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func absDiff(a, b uint8) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}
