package main

import (
	"github.com/gin-gonic/gin"

	"agrimarket.walletd/internal/interfaces/http/handlers"
)

type routeDeps struct {
	connectionHandler *handlers.ConnectionHandler
	sessionHandler    *handlers.SessionHandler
	contractHandler   *handlers.ContractHandler
	eventsHandler     *handlers.EventsHandler
	idempotency       gin.HandlerFunc
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		connection := v1.Group("/connection")
		{
			connection.GET("", d.connectionHandler.GetConnection)
			connection.POST("/connect", d.connectionHandler.Connect)
			connection.POST("/disconnect", d.connectionHandler.Disconnect)
			connection.POST("/network", d.connectionHandler.SwitchNetwork)
			connection.POST("/account", d.connectionHandler.SwitchAccount)
		}
		v1.GET("/networks", d.connectionHandler.ListNetworks)

		session := v1.Group("/session")
		{
			session.GET("", d.sessionHandler.GetSession)
			session.GET("/roles", d.sessionHandler.GetRoles)
			session.POST("/login", d.sessionHandler.Login)
			session.POST("/logout", d.sessionHandler.Logout)
			session.POST("/register/farmer", d.idempotency, d.sessionHandler.RegisterFarmer)
			session.POST("/register/buyer", d.idempotency, d.sessionHandler.RegisterBuyer)
		}

		v1.GET("/contract/stats", d.contractHandler.Stats)

		v1.GET("/events", d.eventsHandler.Stream)
		v1.GET("/events/subscriptions", d.eventsHandler.ListSubscriptions)
	}
}
