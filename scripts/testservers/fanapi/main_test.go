package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestRoutes(t *testing.T) {
	s := &server{fans: 3, videos: 2, schedules: []string{"2024-09-26"}, logger: zap.NewNop()}
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/auth/login", "application/json", strings.NewReader(`{"email":"a@b.c","password":"pw"}`))
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	var login map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()
	if login["access_token"] != token {
		t.Fatalf("login = %v", login)
	}

	get := func(path string, auth bool) (*http.Response, map[string]any) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		if auth {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		defer resp.Body.Close()
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp, body
	}

	if resp, _ := get("/fans", false); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated /fans status = %d", resp.StatusCode)
	}
	if _, body := get("/fans?page_size=2", true); len(body["data"].([]any)) != 2 {
		t.Errorf("/fans data = %v", body["data"])
	}
	if _, body := get("/schedules?page_size=10&ativo=true&consolidada=true", true); len(body["data"].([]any)) != 1 {
		t.Errorf("/schedules data = %v", body["data"])
	}
	resp, body := get("/fans/external/SN-0001/schedule/videos?data=2024-09-26", true)
	if resp.StatusCode != http.StatusOK || len(body["videos"].([]any)) > 2 {
		t.Errorf("videos = %d %v", resp.StatusCode, body)
	}
}
