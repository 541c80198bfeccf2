// Package request defines the execution request model: the prompt, the
// visual/DOM context it was captured against, and per-request options.
package request

// ExecutionRequest is one end-to-end automation request. It is validated
// before admission and treated as immutable afterwards.
type ExecutionRequest struct {
	SessionID string         `json:"session_id,omitempty" jsonschema:"opaque session identifier; generated by the server when omitted"`
	Context   RequestContext `json:"context" jsonschema:"visual and DOM context captured on the client"`
	Prompt    string         `json:"prompt" jsonschema:"natural-language instruction to execute"`
	Options   RequestOptions `json:"options,omitempty" jsonschema:"execution options"`
}

// RequestContext carries the screenshots, serialized DOM state and the
// user's stated intent.
type RequestContext struct {
	Screenshots []Screenshot `json:"screenshots" jsonschema:"ordered screenshots, most recent last; at least one required"`
	DomState    DomState     `json:"dom_state,omitempty" jsonschema:"serialized accessibility tree and interactive elements"`
	UserIntent  string       `json:"user_intent" jsonschema:"what the user is trying to accomplish"`
}

// Screenshot is one captured frame plus its metadata.
type Screenshot struct {
	Timestamp string             `json:"timestamp" jsonschema:"RFC 3339 capture time"`
	ImageData string             `json:"image_data" jsonschema:"base64-encoded image payload"`
	Metadata  ScreenshotMetadata `json:"metadata"`
}

// ScreenshotMetadata describes the window the screenshot was taken of.
type ScreenshotMetadata struct {
	WindowTitle    string `json:"window_title"`
	URL            string `json:"url,omitempty"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
}

// DomState is the serialized accessibility tree plus the interactive
// elements extracted from it.
type DomState struct {
	AccessibilityTree   string               `json:"accessibility_tree,omitempty"`
	InteractiveElements []InteractiveElement `json:"interactive_elements,omitempty"`
}

// InteractiveElement describes one actionable element on the page.
type InteractiveElement struct {
	Role     string `json:"role"`
	Label    string `json:"label,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// RequestOptions are per-request execution knobs. Defaults are applied by
// ApplyDefaults before validation.
type RequestOptions struct {
	TimeoutSeconds  int  `json:"timeout_seconds,omitempty" jsonschema:"execution timeout; default 300, ceiling 3600"`
	MaxOutputTokens int  `json:"max_output_tokens,omitempty" jsonschema:"maximum output size"`
	Stream          bool `json:"stream,omitempty" jsonschema:"stream incremental events"`
}

const (
	// DefaultTimeoutSeconds applies when the request omits a timeout.
	DefaultTimeoutSeconds = 300
	// MaxTimeoutSeconds is the hard ceiling on the per-request timeout.
	MaxTimeoutSeconds = 3600
	// MaxViewportDimension bounds each viewport axis.
	MaxViewportDimension = 10000
)

// ApplyDefaults fills unset options in place.
func (o *RequestOptions) ApplyDefaults() {
	if o.TimeoutSeconds == 0 {
		o.TimeoutSeconds = DefaultTimeoutSeconds
	}
}
