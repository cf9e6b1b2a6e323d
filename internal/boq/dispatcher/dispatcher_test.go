package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/boq-ai/internal/boq/client"
	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/cuongbtq/boq-ai/internal/boq/registry"
)

type fakeUploader struct {
	mu       sync.Mutex
	calls    int
	progress [][2]int64
	jobID    string
	err      error
	seen     string
	during   func()
}

func (f *fakeUploader) Upload(_ context.Context, up client.UploadRequest, onProgress client.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	b, _ := io.ReadAll(up.Content)
	f.seen = string(b)
	for _, p := range f.progress {
		onProgress(p[0], p[1])
	}
	if f.during != nil {
		f.during()
	}
	return f.jobID, f.err
}

func memFile(name, content string) File {
	return File{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

func TestSubmit_Success(t *testing.T) {
	reg := registry.New(nil)
	up := &fakeUploader{
		jobID:    "srv-1",
		progress: [][2]int64{{10, 200}, {50, 200}, {40, 200}, {199, 200}, {200, 200}},
	}

	var progress []int
	reg.Observe(registry.ObserverFunc(func(prev, next domain.Job) {
		if next.Status == domain.StatusUploading {
			progress = append(progress, next.UploadProgress)
		}
	}))

	var queued []string
	d := New(&Config{
		Registry: reg,
		Uploader: up,
		Standard: "american_smm",
		OnQueued: func(clientKey, serverID string) { queued = append(queued, clientKey+"/"+serverID) },
	})

	sub, err := d.Submit(context.Background(), memFile("plan.dwg", "drawing"))
	require.NoError(t, err)
	assert.Equal(t, "srv-1", sub.ServerID)
	assert.Equal(t, "drawing", up.seen)
	assert.Equal(t, []string{sub.ClientKey + "/srv-1"}, queued)

	assert.Equal(t, []int{0, 5, 25, 100}, progress)

	job, err := reg.Get(sub.ClientKey)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, job.Status)
	assert.Equal(t, 100, job.UploadProgress)
	assert.Equal(t, "srv-1", job.ServerID)
}

func TestSubmit_FailureMarksFailedWithoutRetry(t *testing.T) {
	reg := registry.New(nil)
	up := &fakeUploader{err: &domain.TransportError{Op: "upload", Err: errors.New("connection refused")}}

	called := false
	d := New(&Config{
		Registry: reg,
		Uploader: up,
		OnQueued: func(string, string) { called = true },
	})

	sub, err := d.Submit(context.Background(), memFile("plan.dwg", "x"))
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Empty(t, sub.ServerID)
	assert.False(t, called)
	assert.Equal(t, 1, up.calls)

	job, err := reg.Get(sub.ClientKey)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "connection refused")
}

func TestSubmit_JobFailedDuringUploadKeepsFirstError(t *testing.T) {
	reg := registry.New(nil)
	up := &fakeUploader{jobID: "srv-1"}
	up.during = func() {
		require.NoError(t, reg.Fail(reg.All()[0].ClientKey, errors.New("cancelled")))
	}

	var logs bytes.Buffer
	d := New(&Config{
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
		Registry: reg,
		Uploader: up,
	})

	sub, err := d.Submit(context.Background(), memFile("plan.dwg", "x"))
	assert.ErrorIs(t, err, domain.ErrTerminal)
	assert.Contains(t, logs.String(), "Failed to mark job as failed")

	job, err := reg.Get(sub.ClientKey)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "cancelled", job.Error)
	assert.Empty(t, job.ServerID)
}

func TestSubmit_OpenFailure(t *testing.T) {
	reg := registry.New(nil)
	up := &fakeUploader{jobID: "srv-1"}
	d := New(&Config{Registry: reg, Uploader: up})

	f := File{Name: "gone.dwg", Open: func() (io.ReadCloser, error) { return nil, os.ErrNotExist }}
	sub, err := d.Submit(context.Background(), f)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, up.calls)

	job, _ := reg.Get(sub.ClientKey)
	assert.Equal(t, domain.StatusFailed, job.Status)
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name     string
		accepted []string
		wantErr  bool
	}{
		{"plan.dwg", nil, false},
		{"PLAN.DXF", nil, false},
		{"bundle.zip", nil, false},
		{"notes.pdf", nil, true},
		{"README", nil, true},
		{"notes.pdf", []string{"pdf"}, false},
		{"plan.dwg", []string{".pdf"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileName(tt.name, tt.accepted)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.dxf")
	require.NoError(t, os.WriteFile(path, []byte("0\nSECTION\n"), 0o644))

	f, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "site.dxf", f.Name)
	assert.Equal(t, int64(10), f.Size)

	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "0\nSECTION\n", string(b))

	_, err = FromPath(dir)
	assert.Error(t, err)
}
