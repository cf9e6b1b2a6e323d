package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/boq-ai/internal/boq/domain"
)

const maxErrorBodySize = 1 << 20

// Client talks to the BoQ processing service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client for the service at baseURL. A zero timeout means
// requests are bounded only by their context.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UploadRequest describes a file to send to POST /api/boq.
type UploadRequest struct {
	FileName string
	Size     int64
	Content  io.Reader
	Standard string
}

// ProgressFunc receives bytes handed to the transport so far and the total body size.
type ProgressFunc func(sent, total int64)

type uploadResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// Upload streams the file as multipart form data and returns the server job id.
func (c *Client) Upload(ctx context.Context, up UploadRequest, onProgress ProgressFunc) (string, error) {
	if up.Size < 0 {
		return "", fmt.Errorf("upload %s: unknown file size", up.FileName)
	}

	var head bytes.Buffer
	mw := multipart.NewWriter(&head)
	if up.Standard != "" {
		if err := mw.WriteField("standard", up.Standard); err != nil {
			return "", fmt.Errorf("writing standard field: %w", err)
		}
	}
	if _, err := mw.CreateFormFile("file", up.FileName); err != nil {
		return "", fmt.Errorf("creating file part: %w", err)
	}
	headLen := head.Len()
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}
	raw := head.Bytes()
	prefix, suffix := raw[:headLen], raw[headLen:]
	total := int64(len(prefix)) + up.Size + int64(len(suffix))

	body := &progressReader{
		r:     io.MultiReader(bytes.NewReader(prefix), up.Content, bytes.NewReader(suffix)),
		total: total,
		fn:    onProgress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/boq", body)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Debug("Uploading file",
		slog.String("file_name", up.FileName),
		slog.Int64("bytes", total),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.TransportError{Op: "upload " + up.FileName, Err: err}
	}
	defer resp.Body.Close()

	var out uploadResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodySize)).Decode(&out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.ServerError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	if decodeErr != nil {
		return "", &domain.FormatError{Field: "job_id", Detail: decodeErr.Error()}
	}
	if out.Error != "" {
		return "", &domain.ServerError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	if out.JobID == "" {
		return "", &domain.FormatError{Field: "job_id"}
	}
	return out.JobID, nil
}

// StatusReport is a validated GET /status/{id} response.
type StatusReport struct {
	Status domain.Status
	Result *domain.Result
	// Error is the server's reason for a failed job, when it gave one.
	Error string
}

type statusResponse struct {
	JobID  string          `json:"job_id"`
	Status *string         `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Status queries the processing state of a job. A finished report always
// carries a well-formed result.
func (c *Client) Status(ctx context.Context, jobID string) (StatusReport, error) {
	endpoint := c.baseURL + "/status/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusReport{}, fmt.Errorf("creating status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StatusReport{}, &domain.TransportError{Op: "status " + jobID, Err: err}
	}
	defer resp.Body.Close()

	var out statusResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		return StatusReport{}, &domain.ServerError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	if decodeErr != nil {
		return StatusReport{}, &domain.FormatError{Field: "status", Detail: decodeErr.Error()}
	}
	if out.Status == nil {
		return StatusReport{}, &domain.FormatError{Field: "status"}
	}

	status, err := domain.ParseStatus(*out.Status)
	if err != nil || status == domain.StatusUploading {
		return StatusReport{}, &domain.FormatError{Field: "status", Detail: fmt.Sprintf("unexpected value %q", *out.Status)}
	}

	report := StatusReport{Status: status}
	if status == domain.StatusFailed {
		report.Error = out.Error
	}
	if status != domain.StatusFinished {
		return report, nil
	}

	result, err := decodeResult(out.Result)
	if err != nil {
		return StatusReport{}, err
	}
	report.Result = result
	return report, nil
}

// RawResponse is an undecoded response body with the headers callers classify on.
type RawResponse struct {
	StatusCode         int
	ContentType        string
	ContentDisposition string
	Body               []byte
}

// ExportItem is one priced row sent to the spreadsheet generator.
type ExportItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unitPrice"`
}

type exportRequest struct {
	BoqItems []ExportItem `json:"boqItems"`
}

// GenerateExcel posts priced items to POST /api/generate_excel and returns the
// response as-is; the caller decides what the content type means.
func (c *Client) GenerateExcel(ctx context.Context, items []ExportItem) (RawResponse, error) {
	if items == nil {
		items = []ExportItem{}
	}
	payload, err := json.Marshal(exportRequest{BoqItems: items})
	if err != nil {
		return RawResponse{}, fmt.Errorf("marshalling export request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate_excel", bytes.NewReader(payload))
	if err != nil {
		return RawResponse{}, fmt.Errorf("creating export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RawResponse{}, &domain.TransportError{Op: "generate excel", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResponse{}, &domain.TransportError{Op: "reading export response", Err: err}
	}

	return RawResponse{
		StatusCode:         resp.StatusCode,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		Body:               body,
	}, nil
}

// progressReader reports cumulative bytes read to fn.
type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
