package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mediaflow/internal/api"
)

// apiClient calls the daemon HTTP API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{base: base, token: token, http: &http.Client{Timeout: 5 * time.Minute}}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.base)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload api.ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(data))
		}
		return &apiError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start it with `mediaflow serve`", base)
	}
	return fmt.Errorf("connect to daemon at %s: %w", base, err)
}

func (c *apiClient) status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &out)
	return out, err
}

func (c *apiClient) listVideos(ctx context.Context, status, sensitivity, search string) ([]api.Video, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if sensitivity != "" {
		query.Set("sensitivityStatus", sensitivity)
	}
	if search != "" {
		query.Set("search", search)
	}
	path := "/api/videos"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out api.VideoListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

func (c *apiClient) getVideo(ctx context.Context, id string) (api.Video, error) {
	var out api.VideoResponse
	err := c.do(ctx, http.MethodGet, "/api/videos/"+url.PathEscape(id), nil, "", &out)
	return out.Video, err
}

func (c *apiClient) deleteVideo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/videos/"+url.PathEscape(id), nil, "", nil)
}

// submitVideo uploads a local file. mimeType may be empty, in which case the
// extension decides.
func (c *apiClient) submitVideo(ctx context.Context, path, mimeType string) (api.Video, error) {
	file, err := os.Open(path)
	if err != nil {
		return api.Video{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	if mimeType == "" {
		mimeType = mimeTypeForPath(path)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="video"; filename=%q`, filepath.Base(path))},
		"Content-Type":        {mimeType},
	})
	if err != nil {
		return api.Video{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return api.Video{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return api.Video{}, fmt.Errorf("build upload: %w", err)
	}

	var out api.VideoResponse
	err = c.do(ctx, http.MethodPost, "/api/videos", &buf, mw.FormDataContentType(), &out)
	return out.Video, err
}

var extensionMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".ogg":  "video/ogg",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
}

func mimeTypeForPath(path string) string {
	if value, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return value
	}
	return "application/octet-stream"
}
