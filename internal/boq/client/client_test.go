package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/boq-ai/internal/boq/domain"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestUpload_SendsMultipartAndReturnsJobID(t *testing.T) {
	content := strings.Repeat("LINE 0 0 10 10\n", 4096)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/boq", r.URL.Path)
		assert.Positive(t, r.ContentLength)

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		got, _ := io.ReadAll(f)

		assert.Equal(t, "floor.dxf", hdr.Filename)
		assert.Equal(t, content, string(got))
		assert.Equal(t, "indian_is1200", r.FormValue("standard"))

		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": "job-42"})
	}))
	defer srv.Close()

	var sent []int64
	var total int64
	c := New(srv.URL, time.Second, nil)
	id, err := c.Upload(context.Background(), UploadRequest{
		FileName: "floor.dxf",
		Size:     int64(len(content)),
		Content:  strings.NewReader(content),
		Standard: "indian_is1200",
	}, func(s, t int64) {
		sent = append(sent, s)
		total = t
	})

	require.NoError(t, err)
	assert.Equal(t, "job-42", id)
	require.NotEmpty(t, sent)
	for i := 1; i < len(sent); i++ {
		assert.GreaterOrEqual(t, sent[i], sent[i-1])
	}
	assert.Equal(t, total, sent[len(sent)-1])
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "server error with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file part"})
			},
			check: func(t *testing.T, err error) {
				var se *domain.ServerError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusBadRequest, se.StatusCode)
				assert.Equal(t, "No file part", se.Error())
			},
		},
		{
			name: "server error without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrServer)
			},
		},
		{
			name: "missing job id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusAccepted, map[string]string{})
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrFormat)
			},
		},
		{
			name: "non json success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html>ok</html>"))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrFormat)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := New(srv.URL, time.Second, nil)
			_, err := c.Upload(context.Background(), UploadRequest{
				FileName: "a.dwg",
				Size:     3,
				Content:  strings.NewReader("abc"),
			}, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestUpload_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, nil)
	_, err := c.Upload(context.Background(), UploadRequest{
		FileName: "a.dwg",
		Size:     3,
		Content:  strings.NewReader("abc"),
	}, nil)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantStatus domain.Status
		wantItems  int
		wantMsg    string
		wantErr    error
	}{
		{
			name:       "queued",
			code:       http.StatusOK,
			body:       `{"job_id":"j","status":"queued","result":null}`,
			wantStatus: domain.StatusQueued,
		},
		{
			name:       "started",
			code:       http.StatusOK,
			body:       `{"job_id":"j","status":"started","result":null}`,
			wantStatus: domain.StatusStarted,
		},
		{
			name:       "finished with items",
			code:       http.StatusOK,
			body:       `{"job_id":"j","status":"finished","result":{"file":"a.dwg","items":[{"item_code":"A001","description":"Mock Item","quantity":1,"unit":"m"}]}}`,
			wantStatus: domain.StatusFinished,
			wantItems:  1,
		},
		{
			name:       "finished with empty items",
			code:       http.StatusOK,
			body:       `{"job_id":"j","status":"finished","result":{"items":[]}}`,
			wantStatus: domain.StatusFinished,
		},
		{
			name:       "failed",
			code:       http.StatusOK,
			body:       `{"job_id":"j","status":"failed","result":null}`,
			wantStatus: domain.StatusFailed,
		},
		{
			name:       "failed with reason",
			code:       http.StatusOK,
			body:       `{"job_id":"j","status":"failed","result":null,"error":"processing timed out"}`,
			wantStatus: domain.StatusFailed,
			wantMsg:    "processing timed out",
		},
		{
			name:    "finished without result",
			code:    http.StatusOK,
			body:    `{"job_id":"j","status":"finished","result":null}`,
			wantErr: domain.ErrFormat,
		},
		{
			name:    "finished with malformed items",
			code:    http.StatusOK,
			body:    `{"job_id":"j","status":"finished","result":{"items":[{"description":"Wall","quantity":"two","unit":"m"}]}}`,
			wantErr: domain.ErrFormat,
		},
		{
			name:    "missing status",
			code:    http.StatusOK,
			body:    `{"job_id":"j"}`,
			wantErr: domain.ErrFormat,
		},
		{
			name:    "unknown status",
			code:    http.StatusOK,
			body:    `{"job_id":"j","status":"deferred"}`,
			wantErr: domain.ErrFormat,
		},
		{
			name:    "not found",
			code:    http.StatusNotFound,
			body:    `{"error":"Job not found"}`,
			wantErr: domain.ErrServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/status/job-1", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, time.Second, nil)
			report, err := c.Status(context.Background(), "job-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Equal(t, tt.wantMsg, report.Error)
			if tt.wantStatus == domain.StatusFinished {
				require.NotNil(t, report.Result)
				assert.Len(t, report.Result.Items, tt.wantItems)
			} else {
				assert.Nil(t, report.Result)
			}
		})
	}
}

func TestGenerateExcel_ReturnsRawResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate_excel", r.URL.Path)

		var req struct {
			BoqItems []map[string]any `json:"boqItems"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.BoqItems, 1)
		assert.Equal(t, float64(12.5), req.BoqItems[0]["unitPrice"])

		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Disposition", `attachment; filename="x.xlsx"`)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	raw, err := c.GenerateExcel(context.Background(), []ExportItem{{Description: "Wall", Quantity: 2, Unit: "m", UnitPrice: 12.5}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, raw.StatusCode)
	assert.Equal(t, "text/plain", raw.ContentType)
	assert.Equal(t, `attachment; filename="x.xlsx"`, raw.ContentDisposition)
	assert.Equal(t, "hello", string(raw.Body))
}
