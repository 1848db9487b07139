package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"time"

	"ftc-sync/core/reconcile"
	"ftc-sync/core/storage"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const rootPrefix = "snapshots"

// Snapshot is the archived document of one run's upstream snapshot.
type Snapshot struct {
	RunID     string          `json:"run_id"`
	Entity    string          `json:"entity"`
	Scope     reconcile.Scope `json:"scope"`
	FetchedAt time.Time       `json:"fetched_at"`
	Count     int             `json:"count"`
	Records   any             `json:"records"`
}

// Archive writes normalized upstream snapshots to object storage.
// It records what upstream returned; persisted rows are never versioned.
type Archive struct {
	client storage.Client
	bucket string
	retain int
	logger *zap.Logger
}

// New creates an archive writing to bucket and keeping at most retain snapshots per
// prefix (entity type, season and event scope). retain <= 0 keeps everything.
func New(client storage.Client, bucket string, retain int, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{client: client, bucket: bucket, retain: retain, logger: logger}
}

// Hook returns the archive as a reconcile snapshot hook.
func (a *Archive) Hook() reconcile.SnapshotHook {
	return a.Write
}

// Prefix returns the object prefix holding an entity type's snapshots for a scope:
// snapshots/<entity>/<season>/season/ for whole-season runs and
// snapshots/<entity>/<season>/event/<code>/ for runs narrowed to one event.
// The two never overlap, so each is pruned on its own.
func Prefix(entity string, scope reconcile.Scope) string {
	base := path.Join(rootPrefix, entity, strconv.Itoa(scope.Season))
	if scope.EventCode != "" {
		return path.Join(base, "event", scope.EventCode) + "/"
	}
	return path.Join(base, "season") + "/"
}

// ObjectKey returns the object key of a run's snapshot, Prefix + <run_id>.json.
func ObjectKey(s *reconcile.Summary) string {
	return Prefix(s.Entity, s.Scope) + s.RunID + ".json"
}

// Write uploads the snapshot of the run described by summary, then prunes old ones.
func (a *Archive) Write(ctx context.Context, summary *reconcile.Summary, records any) error {
	doc := Snapshot{
		RunID:     summary.RunID,
		Entity:    summary.Entity,
		Scope:     summary.Scope,
		FetchedAt: time.Now().UTC(),
		Count:     summary.Fetched,
		Records:   records,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := ObjectKey(summary)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", key, err)
	}

	a.logger.Debug("Archived snapshot", zap.String("object", key), zap.Int("bytes", len(data)))

	if a.retain > 0 {
		if err := a.prune(ctx, Prefix(summary.Entity, summary.Scope)); err != nil {
			// The snapshot itself is stored; pruning retries on the next run.
			a.logger.Warn("Failed to prune snapshots", zap.Error(err))
		}
	}
	return nil
}

// Read downloads the snapshot stored under key, decoding its records into records
// (a pointer, e.g. *[]match.Record). A nil records leaves Snapshot.Records raw.
func (a *Archive) Read(ctx context.Context, key string, records any) (*Snapshot, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", key, err)
	}
	defer obj.Close()

	var doc struct {
		Snapshot
		Records json.RawMessage `json:"records"`
	}
	if err := json.NewDecoder(obj).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}

	snapshot := doc.Snapshot
	snapshot.Records = doc.Records
	if records != nil {
		if err := json.Unmarshal(doc.Records, records); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot records %s: %w", key, err)
		}
		snapshot.Records = records
	}
	return &snapshot, nil
}

// Latest returns the key of the newest snapshot for an entity type and scope.
// found is false when nothing is archived yet.
func (a *Archive) Latest(ctx context.Context, entity string, scope reconcile.Scope) (key string, found bool, err error) {
	objects, err := a.List(ctx, Prefix(entity, scope))
	if err != nil {
		return "", false, err
	}
	if len(objects) == 0 {
		return "", false, nil
	}
	return objects[0].Key, true, nil
}

// List returns the archived snapshot objects under prefix, newest first.
func (a *Archive) List(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	var objects []minio.ObjectInfo
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		objects = append(objects, obj)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// prune removes the oldest snapshots beyond the retention count.
func (a *Archive) prune(ctx context.Context, prefix string) error {
	objects, err := a.List(ctx, prefix)
	if err != nil {
		return err
	}
	if len(objects) <= a.retain {
		return nil
	}

	stale := objects[a.retain:]
	objectsCh := make(chan minio.ObjectInfo, len(stale))
	for _, obj := range stale {
		objectsCh <- minio.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	var errs []error
	for rErr := range a.client.RemoveObjects(ctx, a.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %s: %w", rErr.ObjectName, rErr.Err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	a.logger.Debug("Pruned snapshots", zap.String("prefix", prefix), zap.Int("removed", len(stale)))
	return nil
}
