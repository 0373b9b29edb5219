package failed

import "errors"

var (
	ErrRecordNotFound = errors.New("failed: record not found")
	ErrStoreFailed    = errors.New("failed: store operation failed")
	ErrInvalidConfig  = errors.New("failed: invalid configuration")
	ErrUploadFailed   = errors.New("failed: upload failed")
	ErrAccessDenied   = errors.New("failed: access denied")
	ErrNotConfigured  = errors.New("failed: sink not configured")
)
