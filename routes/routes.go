package routes

import (
	"net/http"

	"github.com/Dosada05/tournament-api/handlers"
	"github.com/Dosada05/tournament-api/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/tournament-api/docs"
)

type Options struct {
	AllowedOrigins []string
	// Пустой секрет: изменяющие маршруты доступны без токена
	JWTSecret []byte
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	tournamentHandler *handlers.TournamentHandler,
	gameHandler *handlers.GameHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	// Вебсокеты подключаются до CORS: Origin проверяет upgrader
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		r.Get("/healthz", healthHandler.Healthz)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

		r.Route("/api", func(r chi.Router) {
			write := writeGuard(opts.JWTSecret)

			r.Route("/Tournaments", func(r chi.Router) {
				r.Get("/", tournamentHandler.ListHandler)
				r.Get("/{id}", tournamentHandler.GetByIDHandler)
				r.Get("/{id}/Games", tournamentHandler.ListGamesHandler)

				r.Group(func(r chi.Router) {
					r.Use(write...)
					r.Post("/", tournamentHandler.CreateHandler)
					r.Put("/{id}", tournamentHandler.UpdateHandler)
					r.Patch("/{id}", tournamentHandler.PatchHandler)
					r.Delete("/{id}", tournamentHandler.DeleteHandler)
					r.Put("/{id}/logo", tournamentHandler.UploadLogoHandler)
				})
			})

			r.Route("/Games", func(r chi.Router) {
				r.Get("/", gameHandler.ListHandler)
				r.Get("/search", gameHandler.SearchHandler)
				r.Get("/{id}", gameHandler.GetByIDHandler)

				r.Group(func(r chi.Router) {
					r.Use(write...)
					r.Post("/", gameHandler.CreateHandler)
					r.Put("/{id}", gameHandler.UpdateHandler)
					r.Patch("/{id}", gameHandler.PatchHandler)
					r.Delete("/{id}", gameHandler.DeleteHandler)
				})
			})
		})
	})
}

func writeGuard(secret []byte) []func(http.Handler) http.Handler {
	if len(secret) == 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{
		middleware.Authenticate(secret),
		middleware.RequireRole(middleware.RoleOrganizer, middleware.RoleAdmin),
	}
}
