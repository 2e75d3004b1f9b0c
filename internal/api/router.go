package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the pages, the arrival websocket and the JSON API.
func NewRouter(pages *PageController) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger())
	r.Use(pages.Recovery())
	r.Use(CORS())

	r.GET("/", pages.Show)
	r.POST("/sample-mode", pages.SetSampleMode)
	r.POST("/fault/reset", pages.ResetFault)

	order := r.Group("/order")
	{
		order.POST("/start", pages.OrderNow)
		order.POST("/back", pages.Back)
		order.POST("/items/:id/add", pages.AddItem)
		order.POST("/items/:id/remove", pages.RemoveItem)
		order.POST("/details", pages.UpdateDetails)
		order.POST("/submit", pages.Submit)
		order.POST("/new", pages.NewOrder)
	}

	r.GET("/ws/arrival", pages.ServeArrivalWS)

	apiController := NewAPIController(pages)
	apiGroup := r.Group("/api/v1")
	{
		apiGroup.GET("/health", apiController.Health)
		apiGroup.GET("/menu", apiController.GetMenu)
		apiGroup.GET("/session", apiController.GetSession)
		apiGroup.POST("/quote", apiController.Quote)
	}

	return r
}
