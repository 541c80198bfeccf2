package request

import (
	"encoding/base64"
	"time"

	"github.com/coppice-labs/switchboard/internal/apierr"
)

// Limits are the configured validation ceilings.
type Limits struct {
	MaxScreenshots  int
	MaxPromptLength int
	MaxIntentLength int
}

// Validate checks the request against the configured limits. Rules are
// applied in order and the first violation wins; every message names the
// offending field. Validation is pure: it mutates nothing.
func (r *ExecutionRequest) Validate(limits Limits) error {
	if len(r.Context.Screenshots) == 0 {
		return apierr.New(apierr.CodeInvalidRequest, "At least one screenshot is required")
	}
	if len(r.Context.Screenshots) > limits.MaxScreenshots {
		return apierr.New(apierr.CodeInvalidRequest,
			"Too many screenshots: %d exceeds maximum of %d", len(r.Context.Screenshots), limits.MaxScreenshots)
	}

	for i, shot := range r.Context.Screenshots {
		if shot.ImageData == "" {
			return apierr.New(apierr.CodeInvalidRequest, "Screenshot %d image_data cannot be empty", i)
		}
		if _, err := base64.StdEncoding.DecodeString(shot.ImageData); err != nil {
			return apierr.New(apierr.CodeInvalidRequest, "Screenshot %d image_data is not valid base64", i)
		}
		if w := shot.Metadata.ViewportWidth; w <= 0 || w > MaxViewportDimension {
			return apierr.New(apierr.CodeInvalidRequest,
				"Screenshot %d viewport_width must be in (0, %d], got %d", i, MaxViewportDimension, w)
		}
		if h := shot.Metadata.ViewportHeight; h <= 0 || h > MaxViewportDimension {
			return apierr.New(apierr.CodeInvalidRequest,
				"Screenshot %d viewport_height must be in (0, %d], got %d", i, MaxViewportDimension, h)
		}
		if _, err := time.Parse(time.RFC3339, shot.Timestamp); err != nil {
			return apierr.New(apierr.CodeInvalidRequest, "Screenshot %d timestamp must be RFC 3339", i)
		}
	}

	if r.Context.UserIntent == "" {
		return apierr.New(apierr.CodeInvalidRequest, "user_intent cannot be empty")
	}
	if len(r.Context.UserIntent) > limits.MaxIntentLength {
		return apierr.New(apierr.CodeInvalidRequest,
			"user_intent exceeds maximum length of %d", limits.MaxIntentLength)
	}

	if r.Prompt == "" {
		return apierr.New(apierr.CodeInvalidRequest, "prompt cannot be empty")
	}
	if len(r.Prompt) > limits.MaxPromptLength {
		return apierr.New(apierr.CodeInvalidRequest,
			"prompt exceeds maximum length of %d", limits.MaxPromptLength)
	}

	if t := r.Options.TimeoutSeconds; t <= 0 || t > MaxTimeoutSeconds {
		return apierr.New(apierr.CodeInvalidRequest,
			"timeout_seconds must be in (0, %d], got %d", MaxTimeoutSeconds, t)
	}

	return nil
}

// EstimateSize approximates the request's memory footprint: decoded
// screenshot bytes plus text lengths. Callers use it to enforce the
// request-body ceiling before full validation runs.
func (r *ExecutionRequest) EstimateSize() int {
	size := len(r.Prompt) + len(r.Context.UserIntent) + len(r.Context.DomState.AccessibilityTree)
	for _, shot := range r.Context.Screenshots {
		// Decoded size of base64 is 3/4 of the encoded length.
		size += base64.StdEncoding.DecodedLen(len(shot.ImageData))
		size += len(shot.Metadata.WindowTitle) + len(shot.Metadata.URL)
	}
	for _, el := range r.Context.DomState.InteractiveElements {
		size += len(el.Role) + len(el.Label) + len(el.Selector)
	}
	return size
}
