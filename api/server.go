package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docufetch/docufetch/config"
	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/db/searchdb"
	"github.com/docufetch/docufetch/logger"
	"github.com/docufetch/docufetch/validation"
)

type server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	catalog    catalog.Store
	searchdb   searchdb.DB
	validator  *validation.Validator
	logger     logger.Logger
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger.New(),
	}
	if err := s.setupDependencies(); err != nil {
		return err
	}
	s.setupRouter(ctx)
	s.setupHTTPServer()
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies() error {
	var err error
	s.searchdb, err = searchdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating search index", "err", err.Error())
		return err
	}
	s.catalog, err = catalog.New(s.logger, s.cfg, s.searchdb)
	if err != nil {
		s.logger.Error("error creating catalog", "err", err.Error())
		return err
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	return nil

}

func (s *server) setupRouter(ctx context.Context) {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(ctx, router, s.logger, s.cfg, s.catalog, s.searchdb, s.validator)

	s.router = router
}

func (s *server) setupHTTPServer() {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		s.catalog.Close()
		s.searchdb.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
			return
		}
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
