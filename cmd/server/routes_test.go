package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"agrimarket.walletd/internal/interfaces/http/handlers"
)

func TestRegisterAPIV1Routes_RegistersKeyRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	registerAPIV1Routes(r, routeDeps{
		connectionHandler: &handlers.ConnectionHandler{},
		sessionHandler:    &handlers.SessionHandler{},
		contractHandler:   &handlers.ContractHandler{},
		eventsHandler:     &handlers.EventsHandler{},
		idempotency:       func(c *gin.Context) { c.Next() },
	})

	expects := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/connection"},
		{"POST", "/api/v1/connection/connect"},
		{"POST", "/api/v1/connection/disconnect"},
		{"POST", "/api/v1/connection/network"},
		{"POST", "/api/v1/connection/account"},
		{"GET", "/api/v1/networks"},
		{"GET", "/api/v1/session"},
		{"GET", "/api/v1/session/roles"},
		{"POST", "/api/v1/session/login"},
		{"POST", "/api/v1/session/logout"},
		{"POST", "/api/v1/session/register/farmer"},
		{"POST", "/api/v1/session/register/buyer"},
		{"GET", "/api/v1/contract/stats"},
		{"GET", "/api/v1/events"},
		{"GET", "/api/v1/events/subscriptions"},
	}

	routes := r.Routes()
	if len(routes) != len(expects) {
		t.Fatalf("expected %d routes, got %d", len(expects), len(routes))
	}
	for _, exp := range expects {
		found := false
		for _, route := range routes {
			if route.Method == exp.method && route.Path == exp.path {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("route %s %s not registered", exp.method, exp.path)
		}
	}
}

func TestRegisterAPIV1Routes_IdempotencyOnlyOnRegistration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var guarded []string
	registerAPIV1Routes(r, routeDeps{
		connectionHandler: &handlers.ConnectionHandler{},
		sessionHandler:    &handlers.SessionHandler{},
		contractHandler:   &handlers.ContractHandler{},
		eventsHandler:     &handlers.EventsHandler{},
		idempotency: func(c *gin.Context) {
			guarded = append(guarded, c.FullPath())
			c.AbortWithStatus(http.StatusTeapot)
		},
	})

	for _, path := range []string{"/api/v1/session/register/farmer", "/api/v1/session/register/buyer"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("%s: expected idempotency middleware to run, got %d", path, rec.Code)
		}
	}
	if len(guarded) != 2 {
		t.Fatalf("unexpected guarded routes: %v", guarded)
	}
}
