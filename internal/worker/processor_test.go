package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"webpptx/internal/config"
	"webpptx/internal/models"
	"webpptx/internal/queue"
	"webpptx/internal/store"
)

func newTestProcessor(t *testing.T) (*Processor, *queue.RedisQueue, *store.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queue.NewWithClient(client, "jobs:ready")
	st := store.New()
	cfg := config.Config{
		WorkerCount:        2,
		WorkerPollInterval: 5 * time.Millisecond,
		JobTimeout:         5 * time.Second,
	}
	return NewProcessor(cfg, q, st), q, st
}

func waitForTerminal(t *testing.T, st *store.Store, id string) models.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := st.Get(id)
		if ok && (job.Status == models.StatusDone || job.Status == models.StatusFailed) {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", id)
	return models.Job{}
}

func TestProcessorDrivesJobToDone(t *testing.T) {
	p, q, st := newTestProcessor(t)

	dir := t.TempDir()
	p.RegisterHandler("metadata", func(ctx context.Context, job models.Job) (string, error) {
		dest := filepath.Join(dir, job.ID+".zip")
		if err := os.WriteFile(dest, []byte("archive"), 0o644); err != nil {
			return "", err
		}
		return dest, nil
	})

	st.Create(models.Job{ID: "j1", Kind: models.KindMetadata})
	if err := q.Enqueue(context.Background(), "j1"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	job := waitForTerminal(t, st, "j1")
	if job.Status != models.StatusDone {
		t.Fatalf("status = %s, reason = %s", job.Status, job.FailureReason)
	}
	if job.ResultPath == "" {
		t.Fatal("done job has no result path")
	}
	if _, ok := st.TakeResult("j1"); !ok {
		t.Fatal("result not retrievable after completion")
	}
}

func TestProcessorMarksUnreadablePackage(t *testing.T) {
	p, q, st := newTestProcessor(t)
	p.RegisterHandler("metadata", NewMetadataHandler().Handle)

	junk := filepath.Join(t.TempDir(), "pres.pptx")
	if err := os.WriteFile(junk, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	st.Create(models.Job{ID: "j1", Kind: models.KindMetadata, PackagePath: junk})
	if err := q.Enqueue(context.Background(), "j1"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	job := waitForTerminal(t, st, "j1")
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if job.FailureReason != models.FailureUnreadablePackage {
		t.Fatalf("failure reason = %q, want %q", job.FailureReason, models.FailureUnreadablePackage)
	}
	if _, ok := st.TakeResult("j1"); ok {
		t.Fatal("failed job must not hand out a result")
	}
}

func TestProcessorFailsUnknownKind(t *testing.T) {
	p, q, st := newTestProcessor(t)

	st.Create(models.Job{ID: "j1", Kind: "mystery"})
	if err := q.Enqueue(context.Background(), "j1"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	job := waitForTerminal(t, st, "j1")
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
}

func TestProcessorUploadsToMirror(t *testing.T) {
	p, q, st := newTestProcessor(t)

	dir := t.TempDir()
	p.RegisterHandler("metadata", func(ctx context.Context, job models.Job) (string, error) {
		dest := filepath.Join(dir, "response.zip")
		return dest, os.WriteFile(dest, []byte("archive"), 0o644)
	})

	uploads := make(chan string, 1)
	p.SetMirror(mirrorFunc(func(ctx context.Context, jobID, archivePath string) error {
		uploads <- jobID
		return nil
	}))

	st.Create(models.Job{ID: "j1", Kind: models.KindMetadata})
	if err := q.Enqueue(context.Background(), "j1"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case id := <-uploads:
		if id != "j1" {
			t.Fatalf("mirrored job %s", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("mirror never received the archive")
	}

	if job := waitForTerminal(t, st, "j1"); job.Status != models.StatusDone {
		t.Fatalf("status = %s", job.Status)
	}
}

func TestProcessorSurvivesMirrorFailure(t *testing.T) {
	p, q, st := newTestProcessor(t)

	dir := t.TempDir()
	p.RegisterHandler("metadata", func(ctx context.Context, job models.Job) (string, error) {
		dest := filepath.Join(dir, "response.zip")
		return dest, os.WriteFile(dest, []byte("archive"), 0o644)
	})
	p.SetMirror(mirrorFunc(func(ctx context.Context, jobID, archivePath string) error {
		return errors.New("bucket unavailable")
	}))

	st.Create(models.Job{ID: "j1", Kind: models.KindMetadata})
	if err := q.Enqueue(context.Background(), "j1"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Mirroring is best-effort: the job still completes locally.
	if job := waitForTerminal(t, st, "j1"); job.Status != models.StatusDone {
		t.Fatalf("status = %s, reason = %s", job.Status, job.FailureReason)
	}
}

type mirrorFunc func(ctx context.Context, jobID, archivePath string) error

func (f mirrorFunc) Upload(ctx context.Context, jobID, archivePath string) error {
	return f(ctx, jobID, archivePath)
}
