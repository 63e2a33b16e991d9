package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/arcadia-bio/biocore/modules"
	"github.com/arcadia-bio/biocore/pkg/application"
	"github.com/arcadia-bio/biocore/pkg/configuration"
	"github.com/arcadia-bio/biocore/pkg/eventbus"
	"github.com/arcadia-bio/biocore/pkg/metrics"
	"github.com/arcadia-bio/biocore/pkg/middleware"
	"github.com/arcadia-bio/biocore/pkg/migrations"
	"github.com/arcadia-bio/biocore/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	db, err := sql.Open("postgres", conf.Database.ConnectionString())
	if err != nil {
		panic(err)
	}
	if err := migrations.Run(db, logger, app.Schemas()); err != nil {
		panic(err)
	}
	if err := db.Close(); err != nil {
		panic(err)
	}

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	srv := server.NewHTTPServer(app,
		middleware.LogRequests(logger),
		middleware.ProvidePool(pool),
	)

	addr := fmt.Sprintf(":%d", conf.ServerPort)
	logger.WithField("addr", addr).Info("listening")
	if err := srv.Start(addr); err != nil {
		panic(err)
	}
}
