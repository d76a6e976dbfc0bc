package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures across package boundaries. Check them with goerr.HasTag.
var (
	// ErrTagTransport marks network failures, non-2xx responses and malformed payloads from the release API
	ErrTagTransport = goerr.NewTag("transport")

	// ErrTagNotFound marks a selection rule that matched no release
	ErrTagNotFound = goerr.NewTag("not_found")

	// ErrTagConfiguration marks an invalid product registry or option. Fatal at startup.
	ErrTagConfiguration = goerr.NewTag("configuration")
)
