package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	httpapi "github.com/studycontrol/studycontrol/internal/api/http"
	"github.com/studycontrol/studycontrol/internal/assessment"
	auth "github.com/studycontrol/studycontrol/internal/auth/middleware"
	"github.com/studycontrol/studycontrol/internal/catalog"
	"github.com/studycontrol/studycontrol/internal/config"
	"github.com/studycontrol/studycontrol/internal/db"
	"github.com/studycontrol/studycontrol/internal/eventlog"
	"github.com/studycontrol/studycontrol/internal/filetask"
	"github.com/studycontrol/studycontrol/internal/schedule"
	"github.com/studycontrol/studycontrol/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbh.Close()

	blobs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("open blob store: %v", err)
	}

	plans := schedule.NewStore(dbh)
	events := eventlog.New(dbh)
	attempts := assessment.NewSQLStore(dbh, plans, events, time.Now)
	files := filetask.NewService(dbh, plans, blobs, events, time.Now)
	cat := catalog.NewStore(dbh)

	router := httpapi.NewRouter(httpapi.Deps{
		DB:          dbh,
		Auth:        auth.NewAuthService(cfg.AuthSecret),
		Attempts:    attempts,
		Catalog:     cat,
		Files:       files,
		Plans:       plans,
		Events:      events,
		Now:         time.Now,
		CORSOrigins: cfg.CORSOrigins,
	})

	log.Printf("studycontrol listening on %s (db=%s mode=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.Mode)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, router))
}
