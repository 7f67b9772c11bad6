package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewOutbound_SetsUserAgentAndTimeout(t *testing.T) {
	uaCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uaCh <- r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewOutbound(Options{Timeout: 2 * time.Second, UserAgent: "coverage-lookup/test"})
	if c.Timeout != 2*time.Second {
		t.Fatalf("timeout=%v", c.Timeout)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if got := <-uaCh; got != "coverage-lookup/test" {
		t.Fatalf("user-agent=%q", got)
	}
}

func TestNewOutbound_Defaults(t *testing.T) {
	c := NewOutbound(Options{})
	if c.Timeout != 10*time.Second {
		t.Fatalf("timeout=%v", c.Timeout)
	}
	if _, ok := c.Transport.(*http.Transport); !ok {
		t.Fatalf("transport=%T want *http.Transport without a user agent", c.Transport)
	}
}
