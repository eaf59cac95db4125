package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/logger"
)

type HistoryResponse struct {
	Terms []string `json:"terms"`
}

func SetupStats(router *gin.Engine, logger logger.Logger, store catalog.Store) {
	router.GET("/stats", handleStats(store, logger))
	router.GET("/history", handleHistory(store, logger))

}

func handleStats(store catalog.Store, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.Stats()
		if err != nil {
			logger.Error("could not compute catalog stats", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, stats, http.StatusOK, nil)
	}
}

func handleHistory(store catalog.Store, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		terms, err := store.History()
		if err != nil {
			logger.Error("could not read search history", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, HistoryResponse{Terms: terms}, http.StatusOK, nil)
	}
}
