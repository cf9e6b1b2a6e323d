package handler

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/boq-ai/internal/api/storage"
)

var errInvalidCursor = errors.New("invalid cursor")

// DecodeJobCursor parses an opaque page cursor. An empty string is the first page.
func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, errInvalidCursor
	}

	nanos, jobID, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, errInvalidCursor
	}

	createdAt, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, errInvalidCursor
	}
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, errInvalidCursor
	}

	return &storage.JobCursor{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		JobID:     jobID,
	}, nil
}

// EncodeJobCursor is the inverse of DecodeJobCursor
func EncodeJobCursor(cursor storage.JobCursor) string {
	cs := strconv.FormatInt(cursor.CreatedAt.UnixNano(), 10) + "|" + cursor.JobID
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
