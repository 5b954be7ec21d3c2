// Package planner picks the JPEG quality (and resize) that brings an image
// under a byte budget.
//
// The quality search is a coarse linear walk: 100, 90, ..., 10, then the
// floor 1 which is accepted without being measured. It stops at the first
// step that fits, so the chosen quality is always one of Qualities().
package planner

import (
	"fmt"

	"jpegfit/internal/codec"
)

const (
	MaxQuality  = 100
	MinQuality  = 1
	QualityStep = 10
)

// Plan is the outcome of Decide for one image.
type Plan struct {
	Quality int
	Resized bool
	Width   int
	Height  int
	// Size is the encoded length at Quality.
	Size int64
	// BudgetMet is false only when the floor quality was accepted and still
	// exceeds the budget.
	BudgetMet bool
}

// Qualities lists every value SearchQuality can return, highest first.
func Qualities() []int {
	var qs []int
	for q := MaxQuality; q >= MinQuality; q -= QualityStep {
		qs = append(qs, q)
	}
	return append(qs, MinQuality)
}

// MaxBytesFromMB converts a budget in megabytes (MiB) to bytes.
func MaxBytesFromMB(mb float64) int64 {
	return int64(mb * 1024 * 1024)
}

// NeedsConversion reports whether a file must be re-encoded. A file that is
// within the byte budget and the dimension bound is copied as is.
func NeedsConversion(size int64, width, height int, maxBytes int64, maxDimension int) bool {
	return size > maxBytes || width > maxDimension || height > maxDimension
}

// Probe encodes at quality and returns the encoded length.
type Probe func(quality int) (int, error)

// SearchQuality walks the quality ladder until probe reports a size within
// maxBytes. The returned size is the probed size at the chosen quality, or
// -1 when the floor was accepted without probing.
func SearchQuality(maxBytes int64, probe Probe) (quality int, size int64, met bool, err error) {
	quality = MaxQuality
	for {
		n, err := probe(quality)
		if err != nil {
			return 0, 0, false, fmt.Errorf("encode at quality %d: %w", quality, err)
		}
		if int64(n) <= maxBytes {
			return quality, int64(n), true, nil
		}
		quality -= QualityStep
		if quality < MinQuality {
			return MinQuality, -1, false, nil
		}
	}
}

// Decide resizes img when it exceeds maxDimension, then searches for the
// quality that fits maxBytes. It returns the plan together with the encoded
// bytes to write.
func Decide(img codec.Image, maxBytes int64, maxDimension int) (Plan, []byte, error) {
	if maxBytes <= 0 {
		return Plan{}, nil, fmt.Errorf("invalid byte budget %d", maxBytes)
	}
	if maxDimension <= 0 {
		return Plan{}, nil, fmt.Errorf("invalid max dimension %d", maxDimension)
	}

	plan := Plan{}
	if img.Width() > maxDimension || img.Height() > maxDimension {
		if err := img.Fit(maxDimension); err != nil {
			return Plan{}, nil, fmt.Errorf("resize: %w", err)
		}
		plan.Resized = true
	}
	plan.Width, plan.Height = img.Width(), img.Height()

	var last []byte
	quality, _, met, err := SearchQuality(maxBytes, func(q int) (int, error) {
		data, err := img.EncodeJPEG(q)
		if err != nil {
			return 0, err
		}
		last = data
		return len(data), nil
	})
	if err != nil {
		return Plan{}, nil, err
	}

	if !met {
		last, err = img.EncodeJPEG(quality)
		if err != nil {
			return Plan{}, nil, fmt.Errorf("encode at quality %d: %w", quality, err)
		}
	}

	plan.Quality = quality
	plan.BudgetMet = int64(len(last)) <= maxBytes
	plan.Size = int64(len(last))
	return plan, last, nil
}
