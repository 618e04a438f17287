package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the API on router.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	{
		// Meta statistics
		api.GET("/champion-stats", h.GetChampionStats)
		api.GET("/matchups/:champion", h.GetMatchups)
		api.GET("/options", h.GetOptions)

		// Player history
		api.GET("/player", h.GetPlayer)

		// Draft
		api.POST("/recommend", h.Recommend)
		api.GET("/draft/ws", h.DraftSocket)

		// Detail view
		api.GET("/build/:slug", h.GetBuild)
		api.GET("/ddragon", h.GetDDragon)
	}
}
