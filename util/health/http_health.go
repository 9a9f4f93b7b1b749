package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const probeTimeout = 2 * time.Second

// CheckHTTPServer probes another node's health endpoint. The remote body is
// returned as the message so reports can be nested.
func CheckHTTPServer(address, healthPath string) CheckFunc {
	url := strings.TrimSuffix(address, "/") + "/" + strings.TrimPrefix(healthPath, "/")

	return func(ctx context.Context, _ bool) (int, string, error) {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return http.StatusServiceUnavailable, fmt.Sprintf("bad health url %s", url), err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return http.StatusServiceUnavailable, fmt.Sprintf("%s not accepting connections", address), err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return http.StatusServiceUnavailable, strings.TrimSpace(string(body)), nil
		}

		return http.StatusOK, strings.TrimSpace(string(body)), nil
	}
}
