package dlq

import (
	"testing"

	"github.com/Charliesj0129/pixAV/pkg/config"
	"github.com/Charliesj0129/pixAV/pkg/models"
)

func TestPolicyFor(t *testing.T) {
	cfg := config.GetDefaultConfig()

	download, err := policyFor(cfg, "download")
	if err != nil {
		t.Fatalf("policyFor(download) failed: %v", err)
	}
	if download.QueueName != "pixav:download" {
		t.Errorf("download queue = %q, want pixav:download", download.QueueName)
	}
	if download.VideoStatus != models.VideoDiscovered {
		t.Errorf("download rollback status = %q, want discovered", download.VideoStatus)
	}
	if download.MaxRetries != cfg.Download.MaxRetries {
		t.Errorf("download max retries = %d, want %d", download.MaxRetries, cfg.Download.MaxRetries)
	}

	upload, err := policyFor(cfg, "upload")
	if err != nil {
		t.Fatalf("policyFor(upload) failed: %v", err)
	}
	if upload.QueueName != "pixav:upload" {
		t.Errorf("upload queue = %q, want pixav:upload", upload.QueueName)
	}
	if upload.VideoStatus != models.VideoDownloaded {
		t.Errorf("upload rollback status = %q, want downloaded", upload.VideoStatus)
	}

	if _, err := policyFor(cfg, "verify"); err == nil {
		t.Error("policyFor(verify) should fail, only download and upload dead-letter")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 60); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	long := "connection refused while pushing media to the device after mounting the staging volume"
	got := truncate(long, 40)
	if len(got) != 40 {
		t.Errorf("truncated length = %d, want 40", len(got))
	}
	if got[37:] != "..." {
		t.Errorf("truncated suffix = %q, want ...", got[37:])
	}
}
