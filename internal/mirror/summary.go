package mirror

import (
	"errors"
	"fmt"
)

// ErrPartialFailure reports that a run finished but some files were not written.
var ErrPartialFailure = errors.New("mirror: some files failed to download")

// Failure names one task that could not be materialized.
type Failure struct {
	Task DownloadTask
	Err  error
}

// Summary is the outcome of materializing a task list.
type Summary struct {
	Succeeded []DownloadTask
	Failed    []Failure
	Bytes     int64
}

// Err returns nil when every task succeeded. Otherwise it wraps
// ErrPartialFailure with the failure count.
func (s *Summary) Err() error {
	if len(s.Failed) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %d of %d failed", ErrPartialFailure,
		len(s.Failed), len(s.Failed)+len(s.Succeeded))
}

// Merge appends other's results to s.
func (s *Summary) Merge(other *Summary) {
	s.Succeeded = append(s.Succeeded, other.Succeeded...)
	s.Failed = append(s.Failed, other.Failed...)
	s.Bytes += other.Bytes
}
