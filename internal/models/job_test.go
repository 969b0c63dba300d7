package models

import (
	"testing"
	"time"
)

func TestNewJobDefaults(t *testing.T) {
	for _, jobType := range AllJobTypes() {
		job := NewJob(jobType, nil)

		if job.ID == "" {
			t.Errorf("Expected generated ID for type %s", jobType)
		}
		if job.Status != JobStatusPending {
			t.Errorf("Expected pending status, got %s", job.Status)
		}
		if job.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
		if job.StartedAt != nil || job.CompletedAt != nil {
			t.Error("Expected nil StartedAt/CompletedAt on a new job")
		}
		if job.Progress != nil || job.Result != nil {
			t.Error("Expected nil Progress/Result on a new job")
		}
	}
}

func TestNewJobUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		job := NewJob(JobTypeFetch, nil)
		if seen[job.ID] {
			t.Fatalf("Duplicate job ID generated: %s", job.ID)
		}
		seen[job.ID] = true
	}
}

func TestApplyStatusStartedAtSetOnce(t *testing.T) {
	job := NewJob(JobTypeFetch, nil)

	if err := job.ApplyStatus(JobStatusRunning, nil); err != nil {
		t.Fatalf("pending->running failed: %v", err)
	}
	if job.StartedAt == nil {
		t.Fatal("Expected StartedAt after running transition")
	}

	first := *job.StartedAt
	time.Sleep(5 * time.Millisecond)

	if err := job.ApplyStatus(JobStatusRunning, nil); err != nil {
		t.Fatalf("running->running failed: %v", err)
	}
	if !job.StartedAt.Equal(first) {
		t.Error("StartedAt changed on repeated running transition")
	}
}

func TestApplyStatusTerminal(t *testing.T) {
	job := NewJob(JobTypeTranslate, nil)

	if err := job.ApplyStatus(JobStatusRunning, nil); err != nil {
		t.Fatal(err)
	}
	if err := job.ApplyStatus(JobStatusCompleted, &JobResult{Output: "done"}); err != nil {
		t.Fatalf("running->completed failed: %v", err)
	}

	if job.CompletedAt == nil {
		t.Fatal("Expected CompletedAt after terminal transition")
	}
	if job.Result == nil || !job.Result.Success {
		t.Error("Expected Result.Success=true for completed job")
	}

	// Re-asserting the same terminal status overwrites the result
	completedAt := *job.CompletedAt
	if err := job.ApplyStatus(JobStatusCompleted, &JobResult{Output: "again"}); err != nil {
		t.Fatalf("completed->completed should be idempotent: %v", err)
	}
	if job.Result.Output != "again" {
		t.Errorf("Expected result overwrite, got %q", job.Result.Output)
	}
	if !job.CompletedAt.Equal(completedAt) {
		t.Error("CompletedAt changed on idempotent terminal re-assertion")
	}

	// Terminal jobs cannot be resurrected
	for _, status := range []JobStatus{JobStatusPending, JobStatusRunning, JobStatusFailed} {
		if err := job.ApplyStatus(status, nil); err == nil {
			t.Errorf("Expected error transitioning completed job to %s", status)
		}
	}
}

func TestApplyStatusFailedBeforeRunning(t *testing.T) {
	// A job that fails dispatch never enters running but still gets both timestamps
	job := NewJob(JobTypeSyncReady, nil)

	if err := job.ApplyStatus(JobStatusFailed, &JobResult{Error: "unknown type"}); err != nil {
		t.Fatalf("pending->failed should be allowed: %v", err)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Error("Expected both timestamps set on terminal job")
	}
	if job.Result.Success {
		t.Error("Expected Result.Success=false for failed job")
	}
}

func TestApplyStatusForcesResultConsistency(t *testing.T) {
	job := NewJob(JobTypeFetch, nil)
	if err := job.ApplyStatus(JobStatusFailed, &JobResult{Success: true, Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	if job.Result.Success {
		t.Error("Result.Success must be false when status is failed")
	}
}

func TestSetProgressOverwrites(t *testing.T) {
	job := NewJob(JobTypeFetchAll, nil)
	job.SetProgress(1, 10, "starting")
	job.SetProgress(5, 10, "halfway")

	if job.Progress.Current != 5 || job.Progress.Total != 10 || job.Progress.Message != "halfway" {
		t.Errorf("Expected wholesale overwrite, got %+v", job.Progress)
	}
}

func TestJobJSONRoundTrip(t *testing.T) {
	job := NewJob(JobTypeTranslate, JobOptions{"slug": "getting-started", "force": true})
	if err := job.ApplyStatus(JobStatusRunning, nil); err != nil {
		t.Fatal(err)
	}
	job.SetProgress(3, 7, "Processing 3 of 7")
	if err := job.ApplyStatus(JobStatusCompleted, &JobResult{
		Output: "ok",
		Data:   map[string]interface{}{"documents": float64(7)},
	}); err != nil {
		t.Fatal(err)
	}

	data, err := job.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := JobFromJSON(data)
	if err != nil {
		t.Fatal(err)
	}

	if restored.ID != job.ID || restored.Type != job.Type || restored.Status != job.Status {
		t.Error("Identity fields did not survive round-trip")
	}
	if !restored.StartedAt.Equal(*job.StartedAt) || !restored.CompletedAt.Equal(*job.CompletedAt) {
		t.Error("Timestamps did not survive round-trip")
	}
	if *restored.Progress != *job.Progress {
		t.Error("Progress did not survive round-trip")
	}
	if restored.Result.Success != job.Result.Success || restored.Result.Output != job.Result.Output {
		t.Error("Result did not survive round-trip")
	}
	if restored.Result.Data["documents"] != float64(7) {
		t.Error("Result data did not survive round-trip")
	}
}

func TestCloneIsDeep(t *testing.T) {
	job := NewJob(JobTypeFetch, JobOptions{"locale": "ja"})
	job.SetProgress(1, 2, "working")

	clone := job.Clone()
	clone.Options["locale"] = "fr"
	clone.Progress.Current = 99

	if job.Options["locale"] != "ja" {
		t.Error("Clone shares the options map")
	}
	if job.Progress.Current != 1 {
		t.Error("Clone shares the progress struct")
	}
}
