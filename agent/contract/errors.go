package contract

import "errors"

var (
	ErrModelInvoke           = errors.New("model invoke failed")
	ErrPromptMissing         = errors.New("required prompt is missing")
	ErrValidation            = errors.New("validation failed")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrExtractionParse       = errors.New("extraction output is not parseable")
	ErrOrchestration         = errors.New("orchestration failed")
)
