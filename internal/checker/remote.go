package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// maxRemoteBody caps how much of a remote health response is decoded.
const maxRemoteBody = 1 << 20

// remoteCheck GETs url and decodes the JSON body. Transport errors, timeouts,
// non-2xx statuses and undecodable bodies are returned as errors, which the
// checker turns into a failing result.
func remoteCheck(client *http.Client, url string, timeout time.Duration) Func {
	return func(ctx context.Context) (any, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", url, err)
		}
		req.Header.Set("Accept", constants.ContentTypeJSON)

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRemoteBody))
			return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
		}

		var body any
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteBody)).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode %s: %w", url, err)
		}
		return body, nil
	}
}
