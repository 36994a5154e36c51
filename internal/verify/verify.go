// Package verify checks listing photos for reuse and AI generation. A
// failing check never blocks the user: the image is treated as original.
package verify

import (
	"bytes"
	"context"
	"encoding/base64"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Mode string

const (
	ModeProxy  Mode = "proxy"
	ModeVision Mode = "vision"

	DefaultProxyURL  = "http://localhost:3001"
	DefaultVisionURL = "https://vision.googleapis.com"
	maxResults       = 10
)

type Config struct {
	Mode    Mode
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Result struct {
	IsOriginal   bool   `json:"isOriginal"`
	Reason       string `json:"reason"`
	StolenCheck  bool   `json:"stolen_check"`
	AICheck      bool   `json:"ai_check"`
	StolenSource string `json:"stolen_source,omitempty"`
}

type Client struct {
	mode Mode
	key  string
	http *resty.Client
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeProxy
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultProxyURL
		if mode == ModeVision {
			base = DefaultVisionURL
		}
	}
	return &Client{
		mode: mode,
		key:  cfg.APIKey,
		http: resty.New().SetBaseURL(base).SetTimeout(timeout),
		log:  log.Named("verify"),
	}
}

// Verify never fails. When the remote check cannot be completed the image
// is reported original with the cause in Reason.
func (c *Client) Verify(ctx context.Context, filename string, data []byte) Result {
	var (
		res Result
		err error
	)
	switch c.mode {
	case ModeVision:
		var report Report
		report, err = c.annotate(ctx, data)
		if err == nil {
			res = Decide(report)
		}
	default:
		res, err = c.proxy(ctx, filename, data)
	}

	if err != nil {
		c.log.Warn("image verification unavailable, allowing image", zap.String("file", filename), zap.Error(err))
		return Result{IsOriginal: true, Reason: "verification unavailable: " + err.Error()}
	}
	c.log.Info("image verified", zap.String("file", filename),
		zap.Bool("original", res.IsOriginal), zap.Bool("stolen", res.StolenCheck), zap.Bool("ai", res.AICheck))
	return res
}

func (c *Client) proxy(ctx context.Context, filename string, data []byte) (Result, error) {
	var out struct {
		Result
		StolenSource *string `json:"stolen_source"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("image", filename, bytes.NewReader(data)).
		SetResult(&out).
		Post("/api/verify-image")
	if err != nil {
		return Result{}, errors.Wrap(err, "verify-image request failed")
	}
	if resp.IsError() {
		return Result{}, errors.Errorf("verify-image returned %d", resp.StatusCode())
	}

	res := out.Result
	if out.StolenSource != nil {
		res.StolenSource = *out.StolenSource
	}
	return res, nil
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type image struct {
	Content string `json:"content"`
}

type annotateEntry struct {
	Image    image     `json:"image"`
	Features []feature `json:"features"`
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateResponse struct {
	Responses []struct {
		WebDetection struct {
			FullMatchingImages    []struct{ URL string `json:"url"` } `json:"fullMatchingImages"`
			PartialMatchingImages []struct{ URL string `json:"url"` } `json:"partialMatchingImages"`
		} `json:"webDetection"`
		LabelAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"labelAnnotations"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

func (c *Client) annotate(ctx context.Context, data []byte) (Report, error) {
	if c.key == "" {
		return Report{}, errors.New("vision api key is not configured")
	}

	body := annotateRequest{Requests: []annotateEntry{{
		Image: image{Content: base64.StdEncoding.EncodeToString(data)},
		Features: []feature{
			{Type: "WEB_DETECTION", MaxResults: maxResults},
			{Type: "LABEL_DETECTION", MaxResults: maxResults},
		},
	}}}

	var out annotateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.key).
		SetBody(body).
		SetResult(&out).
		Post("/v1/images:annotate")
	if err != nil {
		return Report{}, errors.Wrap(err, "vision request failed")
	}
	if resp.IsError() {
		return Report{}, errors.Errorf("vision returned %d", resp.StatusCode())
	}
	if len(out.Responses) == 0 {
		return Report{}, errors.New("vision returned no annotations")
	}

	r := out.Responses[0]
	if r.Error != nil {
		return Report{}, errors.Errorf("vision error: %s", r.Error.Message)
	}

	var report Report
	for _, m := range r.WebDetection.FullMatchingImages {
		report.FullMatches = append(report.FullMatches, m.URL)
	}
	for _, m := range r.WebDetection.PartialMatchingImages {
		report.PartialMatches = append(report.PartialMatches, m.URL)
	}
	for _, l := range r.LabelAnnotations {
		report.Labels = append(report.Labels, Label{Description: l.Description, Score: l.Score})
	}
	return report, nil
}
