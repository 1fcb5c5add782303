package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/api/ws"
)

func registerAPIRoutes(api huma.API, boards v1.BoardService) {
	v1.RegisterBoardRoutes(api, boards)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/boards/{boardID}", hub.ServeBoard)
}

// requestLogger logs one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
