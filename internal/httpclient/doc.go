// Package httpclient provides the HTTP plumbing shared by the fanload setup calls.
//
// # Request Building
//
// A [RequestBuilder] is bound to the API base URL and produces JSON requests:
//
//	builder, err := httpclient.NewRequestBuilder(cfg.BaseURL)
//	if err != nil {
//		return err
//	}
//	req, err := builder.WithAuth(provider).Build(ctx, http.MethodGet, "/fans", query, nil)
//
// # Responses
//
// [ReadBody] drains and closes a response. Statuses outside 2xx become an
// [*HTTPError] carrying the status code and a short body snippet.
//
// # HTTP Client
//
// [NewClient] creates a client with a per-request timeout and a transport sized
// for the per-fan fan-out:
//
//	client := httpclient.NewClient(30 * time.Second)
package httpclient
