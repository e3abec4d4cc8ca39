package fetcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/types"
)

// seqBlobRepo records the order of calls so tests can assert where the
// commit point sits relative to the blob write and the parse enqueue.
type seqBlobRepo struct {
	events   *[]string
	existing *types.FileBlob
	rows     []*types.FileBlob
}

func (r *seqBlobRepo) InsertIfAbsent(_ context.Context, _ *gorm.DB, b *types.FileBlob) (bool, error) {
	*r.events = append(*r.events, "insert")
	r.rows = append(r.rows, b)
	return true, nil
}

func (r *seqBlobRepo) GetByRepoAndSHA(context.Context, *gorm.DB, uuid.UUID, string) (*types.FileBlob, error) {
	return r.existing, nil
}

func (r *seqBlobRepo) CountByRepo(context.Context, *gorm.DB, uuid.UUID) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *seqBlobRepo) DeleteByRepoPath(context.Context, *gorm.DB, uuid.UUID, string) error {
	return nil
}

func (r *seqBlobRepo) DeleteByRepo(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type seqStore struct {
	events  *[]string
	failPut bool
}

func (s *seqStore) Put(_ context.Context, key string, _ []byte) (string, error) {
	if s.failPut {
		return "", fmt.Errorf("store unavailable")
	}
	*s.events = append(*s.events, "put")
	return key, nil
}

func (s *seqStore) Get(context.Context, string) ([]byte, error)  { return nil, nil }
func (s *seqStore) Exists(context.Context, string) (bool, error) { return false, nil }
func (s *seqStore) DeletePrefix(context.Context, string) error   { return nil }

type seqEnqueuer struct {
	events   *[]string
	payloads []map[string]any
}

func (q *seqEnqueuer) Enqueue(_ context.Context, stage, _ string, _ *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	*q.events = append(*q.events, "enqueue")
	q.payloads = append(q.payloads, payload)
	return &types.JobRun{ID: uuid.New(), JobType: stage}, nil
}

func (q *seqEnqueuer) EnqueueBatch(context.Context, string, string, []map[string]any) ([]*types.JobRun, error) {
	return nil, nil
}

func newTestFetcher(store *seqStore, blobs *seqBlobRepo, queue *seqEnqueuer) *Fetcher {
	return &Fetcher{
		log:   logger.NewNop(),
		store: store,
		blobs: blobs,
		queue: queue,
	}
}

func TestProcessFile_RowCommitsAfterStoreAndEnqueue(t *testing.T) {
	var events []string
	blobs := &seqBlobRepo{events: &events}
	queue := &seqEnqueuer{events: &events}
	f := newTestFetcher(&seqStore{events: &events}, blobs, queue)

	repo := &types.RepositorySnapshot{ID: uuid.New()}
	isNew, err := f.processFile(context.Background(), repo, uuid.New(), "abc123", candidate{
		path:    "svc/auth.go",
		content: []byte("package svc\n\nfunc Login() {}\n"),
	})
	if err != nil {
		t.Fatalf("processFile: %v", err)
	}
	if !isNew {
		t.Fatalf("expected new blob")
	}

	want := []string{"put", "enqueue", "insert"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
	if len(blobs.rows) != 1 || blobs.rows[0].Path != "svc/auth.go" {
		t.Fatalf("blob row = %+v", blobs.rows)
	}
	if got := queue.payloads[0]["blobSha"]; got == "" {
		t.Fatalf("parse payload missing blobSha: %v", queue.payloads[0])
	}
}

func TestProcessFile_StoreFailureLeavesNoRow(t *testing.T) {
	var events []string
	blobs := &seqBlobRepo{events: &events}
	queue := &seqEnqueuer{events: &events}
	f := newTestFetcher(&seqStore{events: &events, failPut: true}, blobs, queue)

	repo := &types.RepositorySnapshot{ID: uuid.New()}
	content := []byte("package svc\n")
	if _, err := f.processFile(context.Background(), repo, uuid.New(), "abc123", candidate{path: "a.go", content: content}); err == nil {
		t.Fatalf("expected store failure to surface")
	}
	if len(blobs.rows) != 0 {
		t.Fatalf("row committed despite failed store write: %+v", blobs.rows)
	}

	// The next scan sees no row for the content and repeats the whole chain.
	f.store = &seqStore{events: &events}
	isNew, err := f.processFile(context.Background(), repo, uuid.New(), "abc123", candidate{path: "a.go", content: content})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !isNew || len(blobs.rows) != 1 {
		t.Fatalf("retry did not re-ingest: isNew=%t rows=%d", isNew, len(blobs.rows))
	}
}

func TestProcessFile_KnownContentSkips(t *testing.T) {
	var events []string
	blobs := &seqBlobRepo{events: &events, existing: &types.FileBlob{ID: uuid.New()}}
	queue := &seqEnqueuer{events: &events}
	f := newTestFetcher(&seqStore{events: &events}, blobs, queue)

	isNew, err := f.processFile(context.Background(), &types.RepositorySnapshot{ID: uuid.New()}, uuid.New(), "abc123", candidate{
		path:    "a.go",
		content: []byte("package a\n"),
	})
	if err != nil {
		t.Fatalf("processFile: %v", err)
	}
	if isNew {
		t.Fatalf("known content reported as new")
	}
	if len(events) != 0 {
		t.Fatalf("known content triggered writes: %v", events)
	}
}
