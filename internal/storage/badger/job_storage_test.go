package badger

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/models"
)

func newTestStorage(t *testing.T) *JobStorage {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &JobStorage{db: db, logger: logger}
}

func TestJobStorageRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	job := models.NewJob(models.JobTypeFetch, models.JobOptions{"slug": "intro"})
	if err := job.ApplyStatus(models.JobStatusRunning, nil); err != nil {
		t.Fatal(err)
	}
	job.SetProgress(2, 4, "Processing 2 of 4")

	if err := storage.SaveJob(ctx, job); err != nil {
		t.Fatalf("Failed to save job: %v", err)
	}

	loaded, err := storage.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected job, got nil")
	}
	if loaded.ID != job.ID || loaded.Type != job.Type || loaded.Status != models.JobStatusRunning {
		t.Errorf("Loaded job does not match saved job: %+v", loaded)
	}
	if loaded.Progress == nil || loaded.Progress.Current != 2 {
		t.Errorf("Progress not persisted: %+v", loaded.Progress)
	}
}

func TestJobStorageGetMissing(t *testing.T) {
	storage := newTestStorage(t)

	job, err := storage.GetJob(context.Background(), "job_missing")
	if err != nil {
		t.Fatalf("Missing job should not be an error: %v", err)
	}
	if job != nil {
		t.Errorf("Expected nil for missing job, got %+v", job)
	}
}

func TestJobStorageSaveOverwrites(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	job := models.NewJob(models.JobTypeTranslate, nil)
	if err := storage.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := job.ApplyStatus(models.JobStatusCompleted, &models.JobResult{Output: "done"}); err != nil {
		t.Fatal(err)
	}
	if err := storage.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	loaded, err := storage.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != models.JobStatusCompleted {
		t.Errorf("Expected completed, got %s", loaded.Status)
	}
	if loaded.Result == nil || !loaded.Result.Success {
		t.Error("Expected successful result after overwrite")
	}
}

func TestJobStorageListOrder(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		job := models.NewJob(models.JobTypeSyncReady, nil)
		if err := storage.SaveJob(ctx, job); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}

	jobs, err := storage.ListJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(jobs))
	}
	for i, job := range jobs {
		if job.ID != ids[i] {
			t.Errorf("Expected creation order at index %d: want %s, got %s", i, ids[i], job.ID)
		}
	}
}

func TestJobStorageDelete(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	job := models.NewJob(models.JobTypeFetch, nil)
	if err := storage.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := storage.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	loaded, err := storage.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil {
		t.Error("Expected job gone after delete")
	}

	// Deleting again is not an error
	if err := storage.DeleteJob(ctx, job.ID); err != nil {
		t.Errorf("Repeated delete should be a no-op: %v", err)
	}
}
