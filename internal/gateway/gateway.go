// Package gateway exposes a read-only HTTP mirror of the app's ABCI queries.
// It holds no state and takes no locks of its own: every request is relayed
// to the app's Query method, so the HTTP surface can never observe a
// half-applied block.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/gin-gonic/gin"
)

// Querier is the slice of the ABCI surface the gateway relays to.
type Querier interface {
	Query(ctx context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error)
}

// Gateway serves the HTTP mirror.
type Gateway struct {
	app    Querier
	router *gin.Engine
}

func New(app Querier) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	g := &Gateway{
		app:    app,
		router: gin.New(),
	}
	g.router.Use(gin.Recovery())
	g.registerRoutes()
	return g
}

func (g *Gateway) registerRoutes() {
	g.router.GET("/pools", g.relay(func(c *gin.Context) string {
		return "/pools"
	}))
	g.router.GET("/pools/:id", g.relay(func(c *gin.Context) string {
		return "/pool/" + c.Param("id")
	}))
	g.router.GET("/pools/:id/commission", g.relay(func(c *gin.Context) string {
		return "/pool/" + c.Param("id") + "/commission"
	}))
	g.router.GET("/pools/:id/participants/:addr", g.relay(func(c *gin.Context) string {
		return "/pool/" + c.Param("id") + "/participant/" + c.Param("addr")
	}))
	g.router.GET("/accounts/:addr", g.relay(func(c *gin.Context) string {
		return "/account/" + c.Param("addr")
	}))
	g.router.GET("/tokens/:denom/balances/:addr", g.relay(func(c *gin.Context) string {
		return "/token/" + c.Param("denom") + "/balance/" + c.Param("addr")
	}))
}

// relay translates one HTTP route into its ABCI query path and forwards the
// raw JSON response.
func (g *Gateway) relay(path func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := g.app.Query(c.Request.Context(), &abci.QueryRequest{Path: path(c)})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if res.Code != 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": res.Log})
			return
		}
		c.Header("X-Block-Height", fmt.Sprintf("%d", res.Height))
		c.Data(http.StatusOK, "application/json", res.Value)
	}
}

// Handler returns the gateway as an http.Handler, for tests and embedding.
func (g *Gateway) Handler() http.Handler { return g.router }

// Serve blocks serving HTTP on laddr.
func (g *Gateway) Serve(laddr string) error {
	return g.router.Run(laddr)
}
