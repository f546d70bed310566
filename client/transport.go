package client

import (
	"io"
	"net/http"
)

// Transport is an [http.RoundTripper] that attaches the coordinator's bearer
// token to every request. On a 401 it joins the coordinator's shared refresh
// flight and retries the original request exactly once with the new token.
type Transport struct {
	// Coordinator supplies tokens and handles refresh. Required.
	Coordinator *Coordinator
	// Base performs the actual round trips. Defaults to http.DefaultTransport.
	Base http.RoundTripper
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements [http.RoundTripper]. Requests with a body are only
// retried when GetBody is set (true for all requests built from byte
// buffers via http.NewRequest).
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if token, ok := t.Coordinator.AccessToken(); ok {
		attempt.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base().RoundTrip(attempt)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	newToken, refreshErr := t.Coordinator.RefreshNow(req.Context())
	if refreshErr != nil {
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.Body != nil {
		if req.GetBody == nil {
			// Body already consumed and not replayable.
			return resp, nil
		}
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+newToken)

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()

	return t.base().RoundTrip(retry)
}
