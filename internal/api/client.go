// Package api reads the reference data the setup run needs from the fan
// management API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/fanload/internal/httpclient"
	"github.com/torosent/fanload/internal/metrics"
	"github.com/torosent/fanload/internal/tracing"
)

// Resource names used for metrics, spans and error reports.
const (
	ResourceFans      = "fans"
	ResourceSchedules = "schedules"
	ResourceVideos    = "videos"
)

// Fan is a reference entity identified by its serial.
type Fan struct {
	Serial string
}

// Schedule is an active, consolidated schedule. Only its date is used.
type Schedule struct {
	Data string
}

// Video is one contract/media tuple scheduled for a fan. The identifiers
// keep the JSON type the API returned them with. Contract fields the API
// left out are nil; VideoID is always set.
type Video struct {
	ContractType json.RawMessage
	ContractID   json.RawMessage
	VideoID      json.RawMessage
}

// ErrMalformedResponse is returned when a response body is not the expected
// JSON envelope.
var ErrMalformedResponse = errors.New("malformed response")

// Client issues the authenticated read calls of the setup run.
type Client struct {
	builder   *httpclient.RequestBuilder
	http      *http.Client
	collector *metrics.Collector
	tracer    trace.Tracer
	propagate bool
	pageSize  int
}

// Option configures a Client.
type Option func(*Client)

// WithCollector records every call under its resource name.
func WithCollector(c *metrics.Collector) Option {
	return func(cl *Client) { cl.collector = c }
}

// WithTracing opens a client span per call and propagates its context.
func WithTracing(p *tracing.Provider) Option {
	return func(cl *Client) {
		cl.tracer = p.Tracer()
		cl.propagate = p.ShouldPropagate()
	}
}

// WithPageSize sets the page_size sent when listing fans and schedules.
func WithPageSize(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.pageSize = n
		}
	}
}

// NewClient creates a Client. builder must already carry the auth provider.
func NewClient(builder *httpclient.RequestBuilder, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		builder:  builder,
		http:     httpClient,
		tracer:   noop.NewTracerProvider().Tracer("fanload"),
		pageSize: 10,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fans lists the first page of fans.
func (c *Client) Fans(ctx context.Context) ([]Fan, error) {
	query := url.Values{"page_size": {strconv.Itoa(c.pageSize)}}
	body, err := c.get(ctx, ResourceFans, "/fans", query)
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: missing data array", ErrMalformedResponse)
	}
	items := data.Array()
	fans := make([]Fan, 0, len(items))
	for _, item := range items {
		fans = append(fans, Fan{Serial: item.Get("serial").String()})
	}
	return fans, nil
}

// Schedules lists the first page of active, consolidated schedules.
func (c *Client) Schedules(ctx context.Context) ([]Schedule, error) {
	query := url.Values{
		"page_size":   {strconv.Itoa(c.pageSize)},
		"ativo":       {"true"},
		"consolidada": {"true"},
	}
	body, err := c.get(ctx, ResourceSchedules, "/schedules", query)
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: missing data array", ErrMalformedResponse)
	}
	items := data.Array()
	schedules := make([]Schedule, 0, len(items))
	for _, item := range items {
		schedules = append(schedules, Schedule{Data: item.Get("data").String()})
	}
	return schedules, nil
}

// FanVideos lists the videos scheduled for the fan with serial on date.
func (c *Client) FanVideos(ctx context.Context, serial, date string) ([]Video, error) {
	path := "/fans/external/" + url.PathEscape(serial) + "/schedule/videos"
	body, err := c.get(ctx, ResourceVideos, path, url.Values{"data": {date}})
	if err != nil {
		return nil, err
	}

	list := gjson.GetBytes(body, "videos")
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: missing videos array", ErrMalformedResponse)
	}
	items := list.Array()
	videos := make([]Video, 0, len(items))
	for i, item := range items {
		id := item.Get("video.id")
		if !id.Exists() {
			return nil, fmt.Errorf("%w: videos[%d]: missing video.id", ErrMalformedResponse, i)
		}
		videos = append(videos, Video{
			ContractType: rawOrNil(item.Get("contrato_tipo")),
			ContractID:   rawOrNil(item.Get("contrato_id")),
			VideoID:      json.RawMessage(id.Raw),
		})
	}
	return videos, nil
}

func (c *Client) get(ctx context.Context, resource, path string, query url.Values) (body []byte, err error) {
	ctx, span := tracing.StartRequestSpan(ctx, c.tracer, http.MethodGet, resource)
	start := time.Now()
	defer func() {
		c.collector.RecordRequest(resource, time.Since(start), err)
		tracing.EndSpan(span, err, attribute.Int("http.response.body.size", len(body)))
	}()

	req, err := c.builder.Build(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err = httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrMalformedResponse)
	}
	return body, nil
}

// rawOrNil returns the raw JSON of r, or nil when r is absent.
func rawOrNil(r gjson.Result) json.RawMessage {
	if !r.Exists() {
		return nil
	}
	return json.RawMessage(r.Raw)
}
