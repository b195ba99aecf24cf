package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"mwdb/pkg/logger"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"
)

// AddJob queues a job for the mirror workers. Nil opts fall back to the
// InsertOpts of args, which is where unique jobs declare their uniqueness.
// Inside a transaction the job becomes visible to workers only once the
// transaction commits, together with the marker saved in it. The result is
// false when River skipped the job as a duplicate of a live one.
func (p *PgSQL) AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error) {
	var (
		res *rivertype.JobInsertResult
		err error
	)
	if tx, ok := p.DB.(*sql.Tx); ok {
		res, err = p.queue.InsertTx(ctx, tx, args, opts)
	} else {
		res, err = p.queue.Insert(ctx, args, opts)
	}
	if err != nil {
		return false, fmt.Errorf("could not insert %s job: %w", args.Kind(), err)
	}

	if res.UniqueSkippedAsDuplicate {
		logger.Debug(ctx, "job skipped as duplicate",
			zap.String("kind", args.Kind()), zap.Int64("existing_job_id", res.Job.ID))

		return false, nil
	}

	return true, nil
}
