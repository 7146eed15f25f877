package errors

import (
	"strings"
	"unicode"
)

// Display grid limits. Frames larger than this are cut off by the device.
const (
	MaxFrameWidth  = 576
	MaxFrameHeight = 136
)

// ValidatePositive checks that an integer option is at least 1.
func ValidatePositive(name string, v int) error {
	if v < 1 {
		return New(ErrCodeInvalidConfiguration, "%s must be >= 1, got %d", name, v)
	}
	return nil
}

// ValidateNonNegative checks that an integer option is not negative.
func ValidateNonNegative(name string, v int) error {
	if v < 0 {
		return New(ErrCodeInvalidConfiguration, "%s must be >= 0, got %d", name, v)
	}
	return nil
}

// ValidateLevel checks that a luminance threshold fits in an 8-bit sample.
func ValidateLevel(name string, v int) error {
	if v < 0 || v > 255 {
		return New(ErrCodeInvalidConfiguration, "%s must be within 0..255, got %d", name, v)
	}
	return nil
}

// ValidateResolution checks a frame size against the display grid.
//
// Validation rules:
//   - Both dimensions must be at least 1
//   - Width cannot exceed [MaxFrameWidth]
//   - Height cannot exceed [MaxFrameHeight]
func ValidateResolution(width, height int) error {
	if width < 1 || height < 1 {
		return New(ErrCodeInvalidConfiguration, "resolution must be positive, got %dx%d", width, height)
	}
	if width > MaxFrameWidth || height > MaxFrameHeight {
		return New(ErrCodeInvalidConfiguration, "resolution %dx%d exceeds display grid %dx%d",
			width, height, MaxFrameWidth, MaxFrameHeight)
	}
	return nil
}

// ValidateKernel checks a structuring element shape. wide selects whether the
// element must be wider than tall (stem pass) or taller than wide (staff pass).
func ValidateKernel(name string, w, h int, wide bool) error {
	if w < 1 || h < 1 {
		return New(ErrCodeInvalidConfiguration, "%s must be at least 1x1, got %dx%d", name, w, h)
	}
	if wide && w < h {
		return New(ErrCodeInvalidConfiguration, "%s must be wider than tall, got %dx%d", name, w, h)
	}
	if !wide && h < w {
		return New(ErrCodeInvalidConfiguration, "%s must be taller than wide, got %dx%d", name, w, h)
	}
	return nil
}

// ValidateLabelFormat checks a frame label format string.
// It must contain exactly one integer verb for the frame index.
func ValidateLabelFormat(format string) error {
	if format == "" {
		return nil
	}
	for _, r := range format {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidConfiguration, "label format contains control characters")
		}
	}
	if strings.Count(format, "%d") != 1 || strings.Count(format, "%") != 1 {
		return New(ErrCodeInvalidConfiguration, "label format must contain exactly one %%d verb: %q", format)
	}
	return nil
}

// ValidateFileName checks that a name is a plain basename usable inside a
// workspace directory.
func ValidateFileName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfiguration, "file name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return New(ErrCodeInvalidConfiguration, "file name must be a plain basename: %q", name)
	}
	return nil
}
