package router

import (
	"database/sql"
	"net/http"

	_ "cattery-breeding/docs"
	mem "cattery-breeding/internal/adapters/storage/memory"
	pg "cattery-breeding/internal/adapters/storage/postgres"
	"cattery-breeding/internal/domain/animals"
	"cattery-breeding/internal/domain/lifecycle"
	"cattery-breeding/internal/domain/ngrules"
	"cattery-breeding/internal/domain/schedule"
	"cattery-breeding/internal/middleware"
	"cattery-breeding/internal/platform/logger"
	"cattery-breeding/internal/platform/metrics"
	"cattery-breeding/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, ng rules y ciclo de cría van a Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: registro de animales remoto. Si no viene, se usa DB o memoria.
	Animals animals.Repository

	// Opcional: almacenamiento local del calendario. Default in-memory.
	LocalStore schedule.LocalStore

	Logger  logger.Logger
	Metrics *metrics.Recorder

	CORSAllowedOrigins []string
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.New(prometheus.NewRegistry())
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(chimw.Recoverer)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(chicors.Handler(chicors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.DeviceHeader, "X-Debug-User-ID"},
			MaxAge:         300,
		}))
	}

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", rec.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var (
		animalRepo animals.Repository
		ruleRepo   ngrules.Repository
		gw         lifecycle.Gateway
	)

	if opts.DB != nil {
		animalRepo = pg.NewAnimalsRepo(opts.DB)
		ruleRepo = pg.NewNGRulesRepo(opts.DB)
		gw.Checks = pg.NewPregnancyChecksRepo(opts.DB)
		gw.Plans = pg.NewBirthPlansRepo(opts.DB)
		gw.Dispositions = pg.NewDispositionsRepo(opts.DB)
	} else {
		animalRepo = mem.NewAnimalRepo()
		ruleRepo = mem.NewNGRuleRepo()
		gw.Checks = mem.NewPregnancyCheckRepo()
		gw.Plans = mem.NewBirthPlanRepo()
		gw.Dispositions = mem.NewDispositionRepo()
	}
	if opts.Animals != nil {
		animalRepo = opts.Animals
	}

	localStore := opts.LocalStore
	if localStore == nil {
		localStore = mem.NewLocalStore()
	}

	// Services por módulo
	animalsSvc := animals.NewService(animalRepo)
	rulesSvc := ngrules.NewService(ruleRepo, animalsSvc, log, rec)
	calendars := schedule.NewManager(localStore, log)
	planner := schedule.NewPlanner(animalsSvc, rulesSvc, log)

	gw.Animals = animalsSvc
	lifecycleSvc := lifecycle.NewService(gw, log, rec)

	// Rutas por módulo; todas requieren operador identificado.
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.RequireOperator)

		animals.RegisterRoutes(pr, animalsSvc)
		ngrules.RegisterRoutes(pr, rulesSvc)
		schedule.RegisterRoutes(pr, calendars, planner)
		lifecycle.RegisterRoutes(pr, lifecycleSvc, calendars)
	})

	return r
}
