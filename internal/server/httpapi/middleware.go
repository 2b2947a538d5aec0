package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const userIDKey ctxKey = "userID"

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user of the request.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get(common.AuthorizationHeaderName))
		if !ok {
			writeError(w, r, s.logger, common.ErrorUnauthorized)
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.secret)
		if err != nil {
			if !errors.Is(err, common.ErrTokenExpired) {
				s.logger.Debug(r.Context(), "rejected token", "error", err)
			}
			writeError(w, r, s.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := s.now()

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
