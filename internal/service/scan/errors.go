package scan

import "errors"

var (
	ErrScanNotFound      = errors.New("scan not found")
	ErrScanNotPending    = errors.New("scan is not pending")
	ErrInvalidTransition = errors.New("invalid scan status transition")
	ErrMissingCredential = errors.New("missing credential")
	ErrScorerUnavailable = errors.New("phrase scorer not configured")
)
