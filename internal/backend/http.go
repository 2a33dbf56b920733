package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// SendJSON posts body as JSON to url and returns the raw response body.
// Transport failures are ModelUnavailable, non-2xx responses ModelError
// (503 is ModelUnavailable), and an expired ctx is Timeout.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, common.Internal("encode json", err)
	}
	return do(ctx, client, http.MethodPost, url, bs, headers, logger)
}

// GetJSON fetches url and returns the raw response body.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	return do(ctx, client, http.MethodGet, url, nil, headers, logger)
}

func do(ctx context.Context, client *http.Client, method, url string, bs []byte, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()

	var rd io.Reader
	if bs != nil {
		rd = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		logger.Error("backend.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, common.Internal("build request", err)
	}

	// Default headers; allow caller overrides.
	if bs != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("backend.http.request",
		"req_id", reqID,
		"method", method,
		"url", url,
		"content_length", len(bs),
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("backend.http.send_error", "req_id", reqID, "url", url, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, transportError(ctx, url, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logger.Warn("backend.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, transportError(ctx, url, err)
	}

	logger.Debug("backend.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, statusError(resp.StatusCode, raw)
	}
	return raw, resp.StatusCode, nil
}

func transportError(ctx context.Context, url string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return common.Timeout("backend request to "+url, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return common.ModelUnavailable("backend unreachable at "+url, err)
}

func statusError(status int, raw []byte) error {
	msg := fmt.Sprintf("backend returned HTTP %d", status)
	if detail := errorDetail(raw); detail != "" {
		msg += ": " + detail
	}
	if status == http.StatusServiceUnavailable || status == http.StatusBadGateway {
		return common.ModelUnavailable(msg, nil)
	}
	return common.ModelError(msg, nil)
}

// errorDetail pulls a message out of the common {"error": ...} shapes.
func errorDetail(raw []byte) string {
	var e struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &e) != nil || len(e.Error) == 0 {
		if len(raw) > 200 {
			raw = raw[:200]
		}
		return string(bytes.TrimSpace(raw))
	}
	var s string
	if json.Unmarshal(e.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(e.Error, &obj) == nil {
		return obj.Message
	}
	return ""
}
