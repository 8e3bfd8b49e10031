package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agrimarket.walletd/internal/domain/entities"
	"agrimarket.walletd/internal/interfaces/http/middleware"
)

const (
	serviceName    = "agrimarket-walletd"
	serviceVersion = "0.1.0"
)

type connectionViewer interface {
	View() entities.ConnectionView
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+middleware.RequestIDHeader+", "+middleware.IdempotencyHeader)
		c.Header("Access-Control-Expose-Headers", middleware.RequestIDHeader+", "+middleware.IdempotencyHitHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine, connection connectionViewer) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"service":    serviceName,
			"version":    serviceVersion,
			"connection": string(connection.View().Status),
		})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
