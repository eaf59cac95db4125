package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docufetch/docufetch/config"
	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/logger"
	"github.com/docufetch/docufetch/services/retrieve"
	"github.com/docufetch/docufetch/validation"
)

type RetrieveRequest struct {
	CSVPath      string   `json:"csv_path" validate:"valid_path"`
	Account      string   `json:"account"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	DateFrom     string   `json:"date_from" validate:"valid_date"`
	DateTo       string   `json:"date_to" validate:"valid_date"`
	Extensions   []string `json:"extensions" validate:"required,min=1"`
	RenamePrefix bool     `json:"rename_prefix"`
	ExportXLSX   bool     `json:"export_xlsx"`
	OutputRoot   string   `json:"output_root"`
}

type RetrieveResponse struct {
	RequestID string `json:"request_id"`
}

func SetupRetrieve(ctx context.Context, router *gin.Engine, logger logger.Logger, cfg *config.Config, store catalog.Store, validator *validation.Validator) {
	service := retrieve.New(ctx, logger, store)
	router.POST("/retrieve", handleRetrieve(service, cfg, logger, validator))
	router.GET("/retrieve/status/:request_id", handleRetrieveStatus(service, logger))

}

func handleRetrieve(service *retrieve.Service, cfg *config.Config, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := RetrieveRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected parameters from retrieve request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate retrieve request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		terms, err := retrieve.BuildTerms(retrieve.TermSources{
			CSVPath:   request.CSVPath,
			Account:   request.Account,
			FirstName: request.FirstName,
			LastName:  request.LastName,
		})
		if err != nil {
			logger.Warn("could not build search terms", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		filter, err := buildFilter(&request)
		if err != nil {
			logger.Warn("could not build retrieval filter", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		outputRoot := request.OutputRoot
		if outputRoot == "" {
			outputRoot = cfg.GetOutputRoot()
		}

		requestID := uuid.New().String()
		err = service.Retrieve(retrieve.Params{
			Terms:      terms,
			Filter:     filter,
			OutputRoot: outputRoot,
		}, requestID)
		if err != nil {
			logger.Warn("could not start retrieval", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusConflict, []string{err.Error()})
			return
		}

		writeResponse(c, RetrieveResponse{RequestID: requestID}, http.StatusAccepted, nil)
	}
}

func buildFilter(request *RetrieveRequest) (retrieve.Filter, error) {
	dateFrom, err := validation.ParseDate(request.DateFrom)
	if err != nil {
		return retrieve.Filter{}, err
	}
	dateTo, err := validation.ParseDate(request.DateTo)
	if err != nil {
		return retrieve.Filter{}, err
	}
	if !dateTo.IsZero() {
		// The upper bound is inclusive of the whole day
		dateTo = dateTo.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	return retrieve.Filter{
		Extensions:   request.Extensions,
		DateFrom:     dateFrom,
		DateTo:       dateTo,
		RenamePrefix: request.RenamePrefix,
		ExportXLSX:   request.ExportXLSX,
	}, nil
}

func handleRetrieveStatus(service *retrieve.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("request_id")

		report, err := service.GetReport(requestID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				writeResponse(c, nil, http.StatusNotFound, []string{"request not found"})
				return
			}
			logger.Error("could not get retrieval status", "request_id", requestID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, report, http.StatusOK, nil)
	}
}
