package routes

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/Dosada05/tournament-engine/docs"
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			// Публичные маршруты
			r.Get("/bracket", tournamentHandler.BracketHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(middleware.Authorize(models.RoleAdmin, models.RoleOrganizer))
				r.Post("/decision", tournamentHandler.DecisionHandler)
			})
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", matchHandler.GetMatchHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/start", matchHandler.StartMatchHandler)
				r.Post("/finish", matchHandler.FinishMatchHandler)
				r.Post("/result", matchHandler.SubmitResultHandler)
				r.Post("/confirm", matchHandler.ConfirmResultHandler)
				r.Post("/dispute", matchHandler.DisputeResultHandler)
				r.Post("/resolve", matchHandler.ResolveDisputeHandler)
				r.Post("/cancel", matchHandler.CancelMatchHandler)
				r.Patch("/schedule", matchHandler.RescheduleHandler)
				r.Post("/proofs", matchHandler.UploadProofHandler)
			})
		})
	})
}
