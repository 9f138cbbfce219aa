package jobModel

import "testing"

func TestNewQueryJob(t *testing.T) {
	j := NewQueryJob("job-1", "chat-1", "trace-1", "Can my landlord keep the deposit?")

	if j.JobType != JobTypeQuery || j.Status != JobStatusQueued || j.CurrentStep != UserQueryInit {
		t.Fatalf("unexpected job state %+v", j)
	}
	if j.ChatId != "chat-1" || j.TraceId != "trace-1" || j.JobPayload.Question == "" {
		t.Errorf("fields not carried over: %+v", j)
	}
	if j.CreatedTime.IsZero() || j.CreatedTime.Location().String() != "UTC" {
		t.Errorf("expected UTC creation time, got %v", j.CreatedTime)
	}
}

func TestNewIngestJob(t *testing.T) {
	j := NewIngestJob("job-2", "trace-2", "Tenancy Act", "/tmp/1-tenancy.pdf")

	if j.JobType != JobTypeIngest || j.CurrentStep != IngestInit || j.ChatId != "" {
		t.Fatalf("unexpected job state %+v", j)
	}
	if j.JobPayload.IngestFileName != "Tenancy Act" || j.JobPayload.IngestURL != "/tmp/1-tenancy.pdf" {
		t.Errorf("payload not carried over: %+v", j.JobPayload)
	}
}

func TestFinished(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusQueued, false},
		{JobStatusRunning, false},
		{JobStatusComplete, true},
		{JobStatusError, true},
	}
	for _, tt := range tests {
		if got := (Job{Status: tt.status}).Finished(); got != tt.want {
			t.Errorf("Finished() with %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}
