package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		MaxAge:         300,
	}))

	r.Get("/ws", c.serveWS)
	r.Get("/media/*", c.serveMedia)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", c.healthz)
		r.Get("/rtc-config", c.getRTCConfig)

		r.Post("/upload/{room-id}", c.uploadVideo)
		r.Post("/request-upload/{room-id}", c.requestUpload)
		r.Post("/request-action/{room-id}", c.processRequest)
		r.Post("/set-youtube/{room-id}", c.setYoutube)
		r.Post("/set-external/{room-id}", c.setExternal)
		r.Post("/select-video/{room-id}", c.selectVideo)
		r.Post("/delete-video/{room-id}", c.deleteVideo)
		r.Post("/clear-upload/{room-id}", c.clearMedia)
		r.Post("/sync-playlist/{room-id}", c.syncPlaylist)
		r.Post("/member-role/{room-id}", c.updateMemberRole)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", c.register)
			r.Post("/login", c.login)
			r.Post("/logout", c.logout)
			r.Get("/me", c.getMe)
			r.Post("/profile", c.updateProfile)
		})

		r.Route("/account", func(r chi.Router) {
			r.Get("/dashboard", c.getDashboard)
			r.Post("/rooms/touch", c.touchRoom)
			r.Post("/history/touch", c.addWatchHistory)
		})
	})

	return r
}
