package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/torosent/fanload/internal/auth"
	"github.com/torosent/fanload/internal/httpclient"
	"github.com/torosent/fanload/internal/metrics"
	"github.com/torosent/fanload/internal/tracing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	builder, err := httpclient.NewRequestBuilder(server.URL)
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	builder = builder.WithAuth(auth.NewTokenProvider(auth.RoleRoot, "root-token"))
	return NewClient(builder, httpclient.NewClient(5*time.Second), opts...)
}

func TestFans(t *testing.T) {
	var gotQuery, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fans" {
			t.Errorf("path = %s, want /fans", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"data":[{"serial":"SN-1","nome":"a"},{"serial":1002}],"total":42}`)
	}, WithPageSize(25))

	fans, err := client.Fans(context.Background())
	if err != nil {
		t.Fatalf("Fans() error = %v", err)
	}
	if gotQuery != "page_size=25" {
		t.Errorf("query = %q, want page_size=25", gotQuery)
	}
	if gotAuth != "Bearer root-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(fans) != 2 || fans[0].Serial != "SN-1" || fans[1].Serial != "1002" {
		t.Errorf("fans = %+v", fans)
	}
}

func TestSchedules(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schedules" {
			t.Errorf("path = %s, want /schedules", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"data":[{"data":"2024-09-26"},{"data":"2024-09-27"}]}`)
	})

	schedules, err := client.Schedules(context.Background())
	if err != nil {
		t.Fatalf("Schedules() error = %v", err)
	}
	if gotQuery != "ativo=true&consolidada=true&page_size=10" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(schedules) != 2 || schedules[1].Data != "2024-09-27" {
		t.Errorf("schedules = %+v", schedules)
	}
}

func TestFanVideosKeepsJSONTypes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fans/external/SN-1/schedule/videos" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("data"); got != "2024-09-26" {
			t.Errorf("data = %q", got)
		}
		_, _ = io.WriteString(w, `{"videos":[
			{"contrato_tipo":"mensal","contrato_id":7,"video":{"id":"v-1"}},
			{"contrato_tipo":"avulso","contrato_id":"c-8","video":{"id":99}},
			{"contrato_id":null,"video":{"id":"v-3"}}
		]}`)
	})

	videos, err := client.FanVideos(context.Background(), "SN-1", "2024-09-26")
	if err != nil {
		t.Fatalf("FanVideos() error = %v", err)
	}
	if len(videos) != 3 {
		t.Fatalf("len(videos) = %d, want 3", len(videos))
	}
	if string(videos[0].ContractType) != `"mensal"` || string(videos[0].ContractID) != `7` || string(videos[0].VideoID) != `"v-1"` {
		t.Errorf("videos[0] = %s %s %s", videos[0].ContractType, videos[0].ContractID, videos[0].VideoID)
	}
	if string(videos[1].ContractID) != `"c-8"` || string(videos[1].VideoID) != `99` {
		t.Errorf("videos[1] = %s %s", videos[1].ContractID, videos[1].VideoID)
	}
	if videos[2].ContractType != nil || string(videos[2].ContractID) != "null" {
		t.Errorf("videos[2] contract = %q %q, want absent type and null id", videos[2].ContractType, videos[2].ContractID)
	}
}

func TestFanVideosRejectsMissingVideoID(t *testing.T) {
	bodies := []string{
		`{"videos":[{"contrato_id":7}]}`,
		`{"videos":[{"contrato_id":7,"video":{"id":"v-1"}},{"contrato_id":8,"video":{}}]}`,
	}
	for _, body := range bodies {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		videos, err := client.FanVideos(context.Background(), "SN-1", "2024-09-26")
		if !errors.Is(err, ErrMalformedResponse) || !strings.Contains(err.Error(), "video.id") {
			t.Errorf("FanVideos(%s) error = %v, want missing video.id", body, err)
		}
		if videos != nil {
			t.Errorf("FanVideos(%s) = %v, want nil", body, videos)
		}
	}
}

func TestFanVideosEscapesSerial(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = io.WriteString(w, `{"videos":[]}`)
	})

	if _, err := client.FanVideos(context.Background(), "SN 1/x", "2024-09-26"); err != nil {
		t.Fatalf("FanVideos() error = %v", err)
	}
	if gotPath != "/fans/external/SN%201%2Fx/schedule/videos" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestErrorsAreTyped(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, "forbidden")
			},
			check: func(t *testing.T, err error) {
				var httpErr *httpclient.HTTPError
				if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
					t.Errorf("error = %v, want HTTP 403", err)
				}
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "<html>")
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("error = %v, want ErrMalformedResponse", err)
				}
			},
		},
		{
			name: "missing envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"items":[]}`)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrMalformedResponse) || !strings.Contains(err.Error(), "data") {
					t.Errorf("error = %v, want missing data array", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.Fans(context.Background())
			if err == nil {
				t.Fatal("Fans() error = nil")
			}
			tt.check(t, err)
		})
	}
}

func TestCallsAreRecorded(t *testing.T) {
	collector := metrics.NewCollector()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/fans/external/") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	}, WithCollector(collector))

	_, _ = client.Fans(context.Background())
	_, _ = client.FanVideos(context.Background(), "SN-1", "2024-09-26")

	stats := collector.Stats()
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	if stats[0].Resource != ResourceFans || stats[0].Successes != 1 {
		t.Errorf("fans stats = %+v", stats[0])
	}
	if stats[1].Resource != ResourceVideos || stats[1].Failures != 1 || stats[1].Errors["HTTP 500"] != 1 {
		t.Errorf("videos stats = %+v", stats[1])
	}
}

func TestTracingInjectsTraceparent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var traceparent string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_, _ = io.WriteString(w, `{"data":[]}`)
	}, WithTracing(tracing.NewWithTracerProvider(tp)))

	if _, err := client.Schedules(context.Background()); err != nil {
		t.Fatalf("Schedules() error = %v", err)
	}
	if traceparent == "" {
		t.Error("traceparent header not sent")
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "GET schedules" {
		t.Errorf("spans = %+v", spans)
	}
}
