package config

import "errors"

// Configuration validation errors returned by Config.Validate. Callers can
// match them with errors.Is.
var (
	// ErrNoTarget is returned when no start URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one start URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDepth is returned for a negative depth.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMaxPages is returned for a negative page cap.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative (0 means unlimited)")

	// ErrInvalidWorkers is returned when the worker count is out of range.
	ErrInvalidWorkers = errors.New("invalid workers: must be between 1 and 64")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidDomainMatch is returned for an unknown domain match mode.
	ErrInvalidDomainMatch = errors.New("invalid domain match: must be exact, subdomain, site or contains")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when both --tor and --proxy are set.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --tor and --proxy cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxQueue is returned for a negative queue cap.
	ErrInvalidMaxQueue = errors.New("invalid max queue: must be non-negative (0 means unbounded)")

	// ErrDefaultCredentials is returned when the defaults section of the
	// configuration file sets a cookie or headers.
	ErrDefaultCredentials = errors.New("cookie and headers must be set per site, not under defaults")
)
