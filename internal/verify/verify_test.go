package verify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, body)
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name   string
		report Report
		want   Result
	}{
		{
			name:   "full match",
			report: Report{FullMatches: []string{"https://listings.example.com/a.jpg"}, PartialMatches: []string{"https://b"}},
			want:   Result{Reason: "image already appears on the web", StolenCheck: true, StolenSource: "https://listings.example.com/a.jpg"},
		},
		{
			name:   "partial match",
			report: Report{PartialMatches: []string{"https://b"}},
			want:   Result{Reason: "image already appears on the web", StolenCheck: true, StolenSource: "https://b"},
		},
		{
			name:   "ai label",
			report: Report{Labels: []Label{{Description: "Interior design", Score: 0.97}, {Description: "Digital art", Score: 0.91}}},
			want:   Result{Reason: "image looks AI-generated (Digital art)", AICheck: true},
		},
		{
			name:   "ai label at threshold",
			report: Report{Labels: []Label{{Description: "Digital art", Score: 0.8}}},
			want:   Result{IsOriginal: true, Reason: "no web matches or AI markers found"},
		},
		{
			name:   "clean",
			report: Report{Labels: []Label{{Description: "Bedroom", Score: 0.99}}},
			want:   Result{IsOriginal: true, Reason: "no web matches or AI markers found"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.report))
		})
	}
}

func TestProxyMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.Equal(t, "/api/verify-image", r.URL.Path) {
			return
		}
		f, hdr, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "room.jpg", hdr.Filename)
		writeJSON(w, `{"isOriginal": false, "reason": "stolen", "stolen_check": true, "ai_check": false, "stolen_source": "https://x"}`)
	}))
	defer srv.Close()

	c := New(Config{Mode: ModeProxy, BaseURL: srv.URL}, zaptest.NewLogger(t))
	res := c.Verify(context.Background(), "room.jpg", []byte("jpegbytes"))
	assert.Equal(t, Result{Reason: "stolen", StolenCheck: true, StolenSource: "https://x"}, res)
}

func TestProxyNullSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"isOriginal": true, "reason": "ok", "stolen_check": false, "ai_check": false, "stolen_source": null}`)
	}))
	defer srv.Close()

	res := New(Config{BaseURL: srv.URL}, zaptest.NewLogger(t)).Verify(context.Background(), "a.png", []byte{1})
	assert.True(t, res.IsOriginal)
	assert.Empty(t, res.StolenSource)
}

func TestFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	for _, mode := range []Mode{ModeProxy, ModeVision} {
		c := New(Config{Mode: mode, BaseURL: srv.URL, APIKey: "k"}, zaptest.NewLogger(t))
		res := c.Verify(context.Background(), "a.png", []byte{1})
		assert.True(t, res.IsOriginal, mode)
		assert.True(t, strings.HasPrefix(res.Reason, "verification unavailable"), res.Reason)
	}

	res := New(Config{Mode: ModeVision, BaseURL: srv.URL}, zaptest.NewLogger(t)).Verify(context.Background(), "a.png", []byte{1})
	assert.True(t, res.IsOriginal)
	assert.Contains(t, res.Reason, "api key")
}

func TestVisionMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.Equal(t, "/v1/images:annotate", r.URL.Path) {
			return
		}
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var req annotateRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		if !assert.Len(t, req.Requests, 1) {
			return
		}
		assert.Equal(t, "AQI=", req.Requests[0].Image.Content)
		assert.Equal(t, []feature{{"WEB_DETECTION", 10}, {"LABEL_DETECTION", 10}}, req.Requests[0].Features)

		writeJSON(w, `{"responses": [{
			"webDetection": {"partialMatchingImages": [{"url": "https://rentals.example.com/p.jpg"}]},
			"labelAnnotations": [{"description": "Room", "score": 0.95}]
		}]}`)
	}))
	defer srv.Close()

	c := New(Config{Mode: ModeVision, BaseURL: srv.URL, APIKey: "secret"}, zaptest.NewLogger(t))
	res := c.Verify(context.Background(), "a.png", []byte{1, 2})
	assert.False(t, res.IsOriginal)
	assert.True(t, res.StolenCheck)
	assert.Equal(t, "https://rentals.example.com/p.jpg", res.StolenSource)
}
