package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTransportAttachesBearer(t *testing.T) {
	api := newFakeAPI(time.Hour)
	c := newTestCoordinator(t, api)
	if err := c.Login(context.Background(), "alice@example.com", "pw", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	var seen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	httpClient := &http.Client{Transport: &Transport{Coordinator: c}}
	resp, err := httpClient.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if seen != "Bearer access-1" {
		t.Fatalf("expected bearer header, got %q", seen)
	}
}

func TestTransportRefreshesAndRetriesOn401(t *testing.T) {
	api := newFakeAPI(time.Hour)
	c := newTestCoordinator(t, api)
	if err := c.Login(context.Background(), "alice@example.com", "pw", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// The server only accepts the token minted by the next refresh.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	httpClient := &http.Client{Transport: &Transport{Coordinator: c}}

	resp, err := httpClient.Post(server.URL, "text/plain", bytes.NewReader([]byte("payload")))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected retried request to succeed, got %d", resp.StatusCode)
	}
	echoed, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(echoed) != "payload" {
		t.Fatalf("expected request body to be replayed, got %q", echoed)
	}

	if refreshes, _ := api.stats(); refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", refreshes)
	}
}

func TestTransportSurfacesOriginal401WhenRefreshFails(t *testing.T) {
	api := newFakeAPI(time.Hour)
	c := newTestCoordinator(t, api)
	if err := c.Login(context.Background(), "alice@example.com", "pw", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	api.mu.Lock()
	api.refreshErr = ErrNotAuthenticated
	api.mu.Unlock()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	httpClient := &http.Client{Transport: &Transport{Coordinator: c}}
	resp, err := httpClient.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the original 401, got %d", resp.StatusCode)
	}
}
