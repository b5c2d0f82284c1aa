package notify

import (
	"io"
	"net/http"
	"time"
)

// defaultHTTPClient backs channels that were not given their own client. The
// dispatcher deadline normally fires first; this is the hard stop.
var defaultHTTPClient = &http.Client{Timeout: 15 * time.Second}

// maxResponseBody caps how much of a provider response is read.
const maxResponseBody = 64 << 10

func httpClientOr(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return defaultHTTPClient
}

func readBody(resp *http.Response) []byte {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return b
}

func authStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
