package enums

// CompressionDecision records what the remote optimizer did with one object.
type CompressionDecision string

const (
	CompressionApplied                 CompressionDecision = "applied"
	CompressionSkippedSmall            CompressionDecision = "skipped_small"
	CompressionSkippedInsufficientGain CompressionDecision = "skipped_insufficient_gain"
	CompressionError                   CompressionDecision = "error"
)

func (d CompressionDecision) String() string {
	return string(d)
}

// IsSkip reports whether the object was left untouched on purpose.
func (d CompressionDecision) IsSkip() bool {
	return d == CompressionSkippedSmall || d == CompressionSkippedInsufficientGain
}
