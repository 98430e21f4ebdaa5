package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// jobCursor is the opaque pagination position: (created_at, id) per
// internal/store.ListFilter.
type jobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// decodeJobCursor decodes a base64-encoded cursor string. An empty string
// decodes to a nil cursor (first page).
func decodeJobCursor(cursorStr string) (*jobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at in cursor: %w", err)
	}

	return &jobCursor{CreatedAt: time.Unix(0, createdAt), JobID: parts[1]}, nil
}

// encodeJobCursor encodes a jobCursor into its base64 wire form.
func encodeJobCursor(c *jobCursor) string {
	raw := fmt.Sprintf("%d|%s", c.CreatedAt.UnixNano(), c.JobID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}
