package proxy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Routes mounts the chat endpoints with CORS handling. Preflight requests
// get an empty 204; non-POST methods on the chat endpoint get a 405 from
// chi's method routing.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type"},
		MaxAge:             300,
		OptionsPassthrough: true,
	}))

	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}

	r.Post("/chat", h.HandleChat)
	r.Options("/chat", preflight)
	r.Get("/usage", h.HandleUsage)
	r.Options("/usage", preflight)

	return r
}
