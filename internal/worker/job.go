package worker

import (
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// DefaultMaxAttempts bounds retries of a mirror job.
const DefaultMaxAttempts = 10

// uniquePeriod is the window in which an object is mirrored at most once.
const uniquePeriod = 24 * time.Hour

// ObjectJobArgs asks a worker to mirror one MWDB object. The listener enqueues
// it in the transaction that advances its marker.
type ObjectJobArgs struct {
	// ID is the SHA256 or dhash of the object.
	ID string `json:"id" river:"unique"`
	// ObjectKind is the MWDB type of the object, e.g. file or static_config.
	ObjectKind string `json:"objectKind"`
}

// Kind returns the River job kind used to dispatch the mirror worker.
func (args ObjectJobArgs) Kind() string { return "MirrorObjectJob" }

// InsertOpts keeps a single live job per object.
func (args ObjectJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: DefaultMaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: uniquePeriod,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStateCompleted,
				rivertype.JobStatePending,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	}
}
