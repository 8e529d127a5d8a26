package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/hamed0406/keepalive/internal/domain"
)

// StageOK is reported when a 200 response carries no runtime stage.
const StageOK = "OK"

const maxBody = 1 << 20

type HTTPChecker struct {
	Client    *http.Client
	Mode      AddressMode
	APIBase   string
	UserAgent string
}

func NewHTTPChecker(mode AddressMode, apiBase string, timeout time.Duration) *HTTPChecker {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		Client:    &http.Client{Timeout: timeout},
		Mode:      mode,
		APIBase:   apiBase,
		UserAgent: DefaultUserAgent,
	}
}

type runtimeBody struct {
	Runtime struct {
		Stage string `json:"stage"`
	} `json:"runtime"`
}

func (h *HTTPChecker) Check(ctx context.Context, target domain.Target) domain.Outcome {
	out := domain.Outcome{TargetID: target.ID, CheckedAt: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Address(h.Mode, h.APIBase, target.ID), nil)
	if err != nil {
		out.Kind = domain.TransportError
		out.Err = err.Error()
		return out
	}
	req.Header.Set("User-Agent", h.UserAgent)
	if target.HasToken() {
		req.Header.Set("Authorization", "Bearer "+target.Token)
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	out.Latency = time.Since(start)
	if err != nil {
		out.Kind = domain.TransportError
		out.Err = err.Error()
		return out
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		out.Kind = domain.HTTPFailure
		out.StatusCode = resp.StatusCode
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return out
	}

	out.Kind = domain.Success
	out.StatusCode = resp.StatusCode
	out.Stage = StageOK
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return out
	}
	var rb runtimeBody
	if json.Unmarshal(body, &rb) == nil && rb.Runtime.Stage != "" {
		out.Stage = rb.Runtime.Stage
	}
	return out
}
