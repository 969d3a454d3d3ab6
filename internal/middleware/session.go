package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/session"
)

// Session loads the session of each request into its context and saves it
// right before the response is written
func Session(m *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := m.Load(r)

			saved := false
			save := func() {
				if saved {
					return
				}
				saved = true
				if err := m.Save(r.Context(), w, s); err != nil {
					log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to save session")
				}
			}

			wrapped := wrap(w)
			wrapped.beforeWrite = save

			next.ServeHTTP(wrapped, r.WithContext(session.NewContext(r.Context(), s)))

			// Handlers that never wrote a body
			if !wrapped.wroteHeader {
				save()
			}
		})
	}
}
