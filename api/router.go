package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docufetch/docufetch/api/handlers"
	"github.com/docufetch/docufetch/config"
	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/db/searchdb"
	"github.com/docufetch/docufetch/logger"
	"github.com/docufetch/docufetch/validation"
)

func setupRoutes(ctx context.Context, router *gin.Engine, logger logger.Logger, cfg *config.Config, store catalog.Store, searchDB searchdb.DB, validator *validation.Validator) {
	router.GET("/health", health())

	handlers.SetupIndex(ctx, router, logger, cfg, store, validator)
	handlers.SetupRetrieve(ctx, router, logger, cfg, store, validator)
	handlers.SetupSearch(router, logger, store, searchDB, validator)
	handlers.SetupStats(router, logger, store)

}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter() *gin.Engine {
	router := gin.Default()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())

	return router
}
