package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes assembles the portal's HTTP surface. Everything past /login
// requires a session; the admin API additionally requires the admin
// role.
func (web *Web) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(web.logger))

	r.Post("/login", web.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(web.RequireSession)

		r.Post("/logout", web.HandleLogout)
		r.Get("/api/v1/profile", web.HandleGetProfile)
		r.Put("/api/v1/profile", web.HandleUpdateProfile)
		r.Put("/api/v1/password", web.HandleChangePassword)
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(web.RequireAdminSession)

		r.Get("/users", web.HandleListUsers)
		r.Get("/users/{localpart}", web.HandleGetUser)
		r.Delete("/users/{localpart}", web.HandleDeleteUser)
		r.Get("/users/{localpart}/debug", web.HandleUserDebugInfo)
		r.Post("/users/{localpart}/reset-link", web.HandleCreateResetLink)

		r.Get("/invites", web.HandleListInvites)
		r.Post("/invites", web.HandleCreateInvite)
		r.Get("/invites/{id}", web.HandleGetInvite)
		r.Delete("/invites/{id}", web.HandleRevokeInvite)

		r.Get("/circles", web.HandleListCircles)
		r.Post("/circles", web.HandleCreateCircle)
		r.Get("/circles/{id}", web.HandleGetCircle)
		r.Put("/circles/{id}", web.HandleUpdateCircle)
		r.Delete("/circles/{id}", web.HandleDeleteCircle)
		r.Put("/circles/{id}/members/{localpart}", web.HandleAddMember)
		r.Delete("/circles/{id}/members/{localpart}", web.HandleRemoveMember)
	})

	return r
}
