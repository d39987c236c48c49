package tracing

// Span attribute keys for routing operations.
// These constants define the semantic conventions for span attributes.
const (
	// Part and site attributes
	AttrPartID = "part.id"
	AttrSiteID = "site.id"

	// Routing attributes
	AttrRoutingID      = "routing.id"
	AttrRoutingVersion = "routing.version"
	AttrRoutingState   = "routing.state"

	// Segment attributes
	AttrSegmentID   = "segment.id"
	AttrSegmentCode = "segment.code"

	// Step attributes
	AttrStepID     = "step.id"
	AttrStepNumber = "step.number"

	// Validation attributes
	AttrAdvisoryCount = "validation.advisory_count"

	// Error attributes
	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span name prefixes for consistent naming.
const (
	SpanPrefixSegment      = "segment."
	SpanPrefixAvailability = "availability."
	SpanPrefixRouting      = "routing."
	SpanPrefixResolve      = "resolve."
	SpanPrefixImport       = "import."
)
