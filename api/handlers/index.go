package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docufetch/docufetch/config"
	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/logger"
	"github.com/docufetch/docufetch/services/extract"
	"github.com/docufetch/docufetch/services/index"
	"github.com/docufetch/docufetch/validation"
)

type IndexRequest struct {
	Path           string   `json:"path" validate:"required,valid_path"`
	Extensions     []string `json:"extensions" validate:"required,min=1"`
	ExcludeFolders []string `json:"exclude_folders"`
	ExtractContent bool     `json:"extract_content"`
	Incremental    bool     `json:"incremental"`
}

type IndexResponse struct {
	RequestID string `json:"request_id"`
}

func SetupIndex(ctx context.Context, router *gin.Engine, logger logger.Logger, cfg *config.Config, store catalog.Store, validator *validation.Validator) {
	registry := extract.NewRegistry(logger)
	service := index.New(ctx, logger, store, registry)
	router.POST("/index", handleIndex(service, cfg, logger, validator))
	router.GET("/index/status/:request_id", handleIndexStatus(service, logger))

}

func handleIndex(service *index.Service, cfg *config.Config, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IndexRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected parameters from index request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate index request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		excludeFolders := request.ExcludeFolders
		if len(excludeFolders) == 0 {
			excludeFolders = cfg.GetExcludeFolders()
		}

		requestID := uuid.New().String()
		err := service.Build(index.BuildParams{
			RootPath:       request.Path,
			Extensions:     request.Extensions,
			ExcludeFolders: excludeFolders,
			ExtractContent: request.ExtractContent,
			Incremental:    request.Incremental,
		}, requestID)
		if err != nil {
			logger.Warn("could not start indexing", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusConflict, []string{err.Error()})
			return
		}

		writeResponse(c, IndexResponse{RequestID: requestID}, http.StatusAccepted, nil)
	}
}

func handleIndexStatus(service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("request_id")

		state, err := service.GetStatus(requestID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				writeResponse(c, nil, http.StatusNotFound, []string{"request not found"})
				return
			}
			logger.Error("could not get indexing status", "request_id", requestID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, state, http.StatusOK, nil)
	}
}
