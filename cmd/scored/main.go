package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/mind-engage/mindengage-scoring/internal/api/http"
	auth "github.com/mind-engage/mindengage-scoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-scoring/internal/config"
	"github.com/mind-engage/mindengage-scoring/internal/db"
	"github.com/mind-engage/mindengage-scoring/internal/exam"
	"github.com/mind-engage/mindengage-scoring/internal/grading"
	"github.com/mind-engage/mindengage-scoring/internal/scoring"
	syncx "github.com/mind-engage/mindengage-scoring/internal/sync"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	grader := grading.NewDefaultGrader(grading.WithTolerance(cfg.Scoring.GridInTolerance))

	// --- Store ---
	var (
		store  exam.Store
		events *syncx.EventRepo
		ready  func() error
	)
	if cfg.DBDriver == config.DriverMemory {
		log.Printf("using in-memory store; data is lost on exit")
		store = exam.NewMemoryStore(grader)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		defer dbh.Close()
		store = exam.NewSQLStore(dbh, cfg.DBDriver, grader)
		events = syncx.NewEventRepo(dbh)
		ready = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return dbh.PingContext(ctx)
		}
	}

	// --- Scoring ---
	scorer := scoring.NewService(exam.Sources(store),
		scoring.WithMaxInvalidFraction(cfg.Scoring.MaxInvalidFraction),
		scoring.WithFetchTimeout(cfg.Scoring.FetchTimeout),
	)
	var sink interface {
		scoring.ScoreSink
		scoring.RegradeLog
	} = store
	deps := api.Deps{
		Store:     store,
		Scorer:    scorer,
		Grader:    grader,
		LocalAuth: cfg.EnableLocalAuth,
		Origins:   cfg.CORSOrigins(),
		Ready:     ready,
	}
	if events != nil {
		rec := &syncx.Recorder{Scores: store, History: store, Events: events, SiteID: cfg.SiteID}
		sink = rec
		deps.Events = events
	}
	deps.Sink = sink
	deps.Regrader = scoring.NewRegrader(scorer, store, sink, sink)

	// --- Auth (local JWT; dev logins only offline) ---
	deps.Auth = auth.NewAuthService(cfg.AuthHMACSecret,
		auth.WithAdmin(cfg.AdminUser, cfg.AdminPassHash),
		auth.WithDevLogins(cfg.Mode == config.ModeOffline),
	)

	r := api.NewRouter(deps)
	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
