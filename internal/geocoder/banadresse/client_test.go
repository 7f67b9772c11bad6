package banadresse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, chan *http.Request) {
	t.Helper()
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

const parisBody = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[2.3522,48.8566]},
  "properties":{"label":"8 Boulevard du Port 80000 Amiens","score":0.49}}]}`

func TestGeocode_FirstFeature(t *testing.T) {
	srv, reqs := newServer(t, http.StatusOK, parisBody)
	c, err := New(srv.URL+"/", srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	p, err := c.Geocode(context.Background(), "8 bd du Port")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if p == nil || p.Lon != 2.3522 || p.Lat != 48.8566 {
		t.Fatalf("point=%v", p)
	}

	r := <-reqs
	if r.URL.Path != "/search/" {
		t.Fatalf("path=%q want /search/", r.URL.Path)
	}
	if r.URL.Query().Get("q") != "8 bd du Port" || r.URL.Query().Get("limit") != "1" {
		t.Fatalf("query=%q", r.URL.RawQuery)
	}
}

func TestGeocode_NoFeaturesIsNil(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"type":"FeatureCollection","features":[]}`)
	c, _ := New(srv.URL, srv.Client())

	p, err := c.Geocode(context.Background(), "zzzz")
	if err != nil || p != nil {
		t.Fatalf("p=%v err=%v want nil,nil", p, err)
	}
}

func TestGeocode_UpstreamErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"status":       {http.StatusBadRequest, `{"code":400,"message":"q must contain between 3 and 200 chars"}`},
		"bad json":     {http.StatusOK, `{"features":[`},
		"short coord":  {http.StatusOK, `{"features":[{"geometry":{"coordinates":[2.35]}}]}`},
		"out of range": {http.StatusOK, `{"features":[{"geometry":{"coordinates":[200,48]}}]}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newServer(t, tc.status, tc.body)
			c, _ := New(srv.URL, srv.Client())
			p, err := c.Geocode(context.Background(), "Paris")
			if err == nil || p != nil {
				t.Fatalf("p=%v err=%v want error", p, err)
			}
		})
	}
}

func TestGeocode_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	c, _ := New(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Geocode(ctx, "Paris")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	if _, err := New("ftp://example.org", nil); err == nil {
		t.Fatal("expected scheme error")
	}
	c, err := New("", nil, WithLimit(5))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.searchURL("a b"); got != DefaultBaseURL+"/search/?limit=5&q=a+b" {
		t.Fatalf("url=%q", got)
	}
}
