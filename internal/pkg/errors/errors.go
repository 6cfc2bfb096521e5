package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMisconfigured covers missing knowledge sources and missing credentials.
	ErrMisconfigured = errors.New("misconfigured")
	// ErrNoArticles means the selection criteria matched nothing.
	ErrNoArticles = errors.New("no articles found matching criteria")
	// ErrUpstreamUnavailable is returned once rate-limit retries are exhausted.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrBadResponseShape is a non-text LLM block or unparseable JSON.
	ErrBadResponseShape = errors.New("bad response shape")
	// ErrSchemaInvalid is parseable LLM output that failed validation.
	ErrSchemaInvalid = errors.New("schema validation failed")
	// ErrGenerationInProgress means another run holds the course lock.
	ErrGenerationInProgress = errors.New("generation already in progress")
)
