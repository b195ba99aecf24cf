package worker

import (
	"context"
	"errors"
	"fmt"
	"mwdb/pkg/api"
	"mwdb/pkg/logger"
	"mwdb/pkg/mwdb"
	"mwdb/pkg/serrors"
	"os"
	"path/filepath"

	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// Querier looks objects up by hash.
//
//go:generate mockgen -package mockworker -source=mirror.go -destination=mock/mockworker.go Querier
type Querier interface {
	Query(ctx context.Context, hash string) (*mwdb.Object, error)
}

// MirrorWorker is a River worker saving the contents of MWDB objects into a
// directory. Files are stored under their SHA256, configs as <dhash>.json and
// blobs as <dhash>.txt. A file already present is not downloaded again.
//
// Objects that vanished from MWDB cancel the job. Rate-limited requests snooze
// it for the Retry-After period; any other error is retried by River.
type MirrorWorker struct {
	river.WorkerDefaults[ObjectJobArgs]

	objects Querier
	dir     string
}

// NewMirrorWorker constructs a MirrorWorker writing into dir.
func NewMirrorWorker(objects Querier, dir string) *MirrorWorker {
	return &MirrorWorker{objects: objects, dir: dir}
}

// Path returns where the object is mirrored.
func (w *MirrorWorker) Path(args ObjectJobArgs) string {
	name := args.ID
	switch mwdb.Kind(args.ObjectKind) {
	case mwdb.KindConfig:
		name += ".json"
	case mwdb.KindBlob:
		name += ".txt"
	}

	return filepath.Join(w.dir, filepath.Base(name))
}

// Work mirrors a single object.
func (w *MirrorWorker) Work(ctx context.Context, job *river.Job[ObjectJobArgs]) error {
	ctx = logger.WithFields(ctx,
		zap.Int64("jobID", job.ID),
		zap.String("objectID", job.Args.ID),
		zap.String("objectKind", job.Args.ObjectKind))

	dest := w.Path(job.Args)
	if _, err := os.Stat(dest); err == nil {
		logger.Debug(ctx, "object already mirrored", zap.String("path", dest))

		return nil
	}

	content, err := w.content(ctx, job.Args.ID)
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return river.JobCancel(err) //nolint: wrapcheck
		}

		logger.Error(ctx, "error in fetching object", zap.Error(err))

		if errors.Is(err, serrors.ErrRateLimited) {
			return river.JobSnooze(api.DefaultRetryAfter) //nolint: wrapcheck
		}

		return fmt.Errorf("could not fetch object: %w", err)
	}

	if err := writeFile(w.dir, dest, content); err != nil {
		logger.Error(ctx, "error in writing object", zap.Error(err))

		return err
	}

	logger.Info(ctx, "object mirrored", zap.String("path", dest), zap.Int("size", len(content)))

	return nil
}

func (w *MirrorWorker) content(ctx context.Context, id string) ([]byte, error) {
	obj, err := w.objects.Query(ctx, id)
	if err != nil {
		return nil, err //nolint: wrapcheck
	}

	return obj.Content(ctx)
}

// writeFile replaces dest atomically so that a crashed worker never leaves a
// truncated sample behind.
func writeFile(dir, dest string, content []byte) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("could not create mirror directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mirror-*")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("could not write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not write object: %w", err)
	}
	if err := os.Chmod(tmp.Name(), fileMode); err != nil {
		return fmt.Errorf("could not restrict object permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("could not store object: %w", err)
	}

	return nil
}
