package common

import "fmt"

var (
	ErrManifestSourceRequired = fmt.Errorf("manifest file or url is required")
	ErrEmptyManifest          = fmt.Errorf("manifest contains no entries")
	ErrSyncHasAlreadyStarted  = fmt.Errorf("sync process has already started")
	ErrNoReportsFoundError    = fmt.Errorf("no reports found")
)
