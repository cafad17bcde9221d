package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler) {
	imports := server.Group("/api/v1/imports")
	imports.POST("", importHandler.Upload)
	imports.GET("/:id", importHandler.Get)
	imports.GET("/:id/errors", importHandler.Errors)
	imports.POST("/:id/analyze", importHandler.Analyze)
	imports.POST("/:id/confirm", importHandler.Confirm)
	imports.POST("/:id/cancel", importHandler.Cancel)
}
