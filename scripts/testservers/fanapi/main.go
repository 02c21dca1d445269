// Command fanapi serves a stand-in fan management API for local fanload runs.
//
//	go run ./scripts/testservers/fanapi --port 8000 --fans 10
//	API_BASE_URL=http://localhost:8000 fanload --load-tool true
package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const token = "local-token"

type server struct {
	fans      int
	videos    int
	schedules []string
	logger    *zap.Logger
}

func main() {
	port := pflag.Int("port", 8000, "Listening port")
	fans := pflag.Int("fans", 10, "Number of fans listed by /fans")
	videos := pflag.Int("videos", 3, "Maximum videos scheduled per fan")
	dates := pflag.StringSlice("dates", []string{"2024-09-26", "2024-09-27"}, "Schedule dates listed by /schedules")
	pflag.Parse()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	s := &server{fans: *fans, videos: *videos, schedules: *dates, logger: logger}
	addr := fmt.Sprintf(":%d", *port)
	logger.Info("fan API stand-in listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, s.routes()); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /fans", s.authorized(s.handleFans))
	mux.HandleFunc("GET /schedules", s.authorized(s.handleSchedules))
	mux.HandleFunc("GET /fans/external/{serial}/schedule/videos", s.authorized(s.handleVideos))
	return mux
}

func (s *server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			respondJSON(w, http.StatusUnauthorized, map[string]any{"detail": "not authenticated"})
			return
		}
		next(w, r)
	}
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		respondJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid credentials"})
		return
	}
	s.logger.Debug("login", zap.String("email", body.Email))
	respondJSON(w, http.StatusOK, map[string]any{"access_token": token, "token_type": "bearer"})
}

func pageSize(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || n < 1 {
		return 10
	}
	return n
}

func (s *server) handleFans(w http.ResponseWriter, r *http.Request) {
	n := min(pageSize(r), s.fans)
	data := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		data = append(data, map[string]any{
			"serial": fmt.Sprintf("SN-%04d", i),
			"nome":   fmt.Sprintf("Fan %d", i),
			"status": 1,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": data, "total": s.fans})
}

func (s *server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("ativo") != "true" || q.Get("consolidada") != "true" {
		respondJSON(w, http.StatusOK, map[string]any{"data": []any{}, "total": 0})
		return
	}
	n := min(pageSize(r), len(s.schedules))
	data := make([]map[string]any, 0, n)
	for i, d := range s.schedules[:n] {
		data = append(data, map[string]any{"id": i + 1, "data": d, "ativo": true, "consolidada": true})
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": data, "total": len(s.schedules)})
}

func (s *server) handleVideos(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")
	if !strings.HasPrefix(serial, "SN-") {
		respondJSON(w, http.StatusNotFound, map[string]any{"detail": "fan not found"})
		return
	}
	count := rand.IntN(max(s.videos, 0) + 1)
	videos := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		videos = append(videos, map[string]any{
			"contrato_tipo": []string{"mensal", "avulso"}[i%2],
			"contrato_id":   i + 1,
			"video":         map[string]any{"id": fmt.Sprintf("video-%s-%d", serial, i+1)},
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": r.URL.Query().Get("data"), "videos": videos})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
