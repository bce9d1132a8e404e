package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/talentprofile/talentprofile/internal/api/http"
	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/audit"
	auth "github.com/talentprofile/talentprofile/internal/auth/middleware"
	"github.com/talentprofile/talentprofile/internal/config"
	"github.com/talentprofile/talentprofile/internal/db"
	"github.com/talentprofile/talentprofile/internal/platform/logger"
	"github.com/talentprofile/talentprofile/internal/psych/irt"
	"github.com/talentprofile/talentprofile/internal/rbac"
	"github.com/talentprofile/talentprofile/internal/scoring"
	"github.com/talentprofile/talentprofile/internal/seed"
	"github.com/talentprofile/talentprofile/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log, err := logger.New(string(cfg.Mode))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", "err", err)
	}
	store := assessment.NewSQLStore(dbh, cfg.DBDriver)

	if cfg.SeedOnBoot {
		need, err := seed.Needed(ctx, store)
		if err != nil {
			log.Fatal("seed check failed", "err", err)
		}
		if need {
			if err := seed.Load(ctx, store); err != nil {
				log.Fatal("seed failed", "err", err)
			}
			log.Info("seeded item bank and model templates")
		}
	}

	// --- Core services ---
	events := audit.NewLog(dbh, cfg.SiteID)
	svc := session.New(store,
		session.WithRecorder(events),
		session.WithExpiry(cfg.AssessmentTTL),
		session.WithIRTOptions(irt.Options{
			MinItems:  cfg.CATMinItems,
			MaxItems:  cfg.CATMaxItems,
			TargetSEM: cfg.CATTargetSEM,
		}),
		session.WithEngine(scoring.NewEngine(scoring.WithFCWeight(cfg.FCWeight))),
	)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.AdminUser, cfg.AdminPassHash)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("candidate:create")).
			Post("/candidates", api.CreateCandidateHandler(store))

		pr.With(rbac.Require("assessment:create")).
			Post("/assessments", api.CreateAssessmentHandler(svc))
		pr.With(rbac.Require("assessment:view-all")).
			Get("/assessments", api.ListAssessmentsHandler(store))

		// Examinee flow
		pr.With(rbac.Require("assessment:take")).
			Post("/assessments/{assessmentID}/start", api.StartAssessmentHandler(svc))
		pr.With(rbac.Require("assessment:take")).
			Get("/assessments/{assessmentID}/next", api.NextItemHandler(svc))
		pr.With(rbac.Require("assessment:take")).
			Post("/assessments/{assessmentID}/responses", api.RespondItemHandler(svc))

		// Scoring and selection
		pr.With(rbac.Require("assessment:complete")).
			Post("/assessments/{assessmentID}/complete", api.CompleteAssessmentHandler(svc))
		pr.With(rbac.RequireAny("assessment:view-own", "assessment:view-all")).
			Get("/assessments/{assessmentID}/scores", api.GetProfileHandler(svc))
		pr.With(rbac.Require("match:compute")).
			Get("/assessments/{assessmentID}/match/{modelID}", api.ComputeMatchHandler(svc))
		pr.With(rbac.Require("interview:generate")).
			Get("/assessments/{assessmentID}/interview/{modelID}", api.InterviewQuestionsHandler(svc))

		// Performance models
		pr.With(rbac.Require("model:view")).
			Get("/models", api.ListModelsHandler(store))
		pr.With(rbac.Require("model:view")).
			Get("/models/{modelID}", api.GetModelHandler(store))
		pr.With(rbac.Require("model:edit")).
			Post("/models", api.PutModelHandler(store))
	})

	log.Info("gateway listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal("server stopped", "err", err)
	}
}
