package routes

import (
	"cloudbox/controllers"
	"cloudbox/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterFileRoutes(rg *gin.RouterGroup, jwtSecret string, fileController *controllers.FileController) {
	files := rg.Group("/files")
	files.Use(middleware.AuthMiddleware(jwtSecret))
	{
		files.POST("/upload", fileController.Upload)       // POST /files/upload?parentFolderId&fileEntryId
		files.POST("/folder", fileController.CreateFolder) // POST /files/folder?parentFolderId

		files.GET("/:id", fileController.GetFileOrFolder)
		files.DELETE("/:id", fileController.Delete)
		files.GET("/:id/download", fileController.Download)

		files.POST("/:id/share", fileController.Share)
		files.GET("/:id/shares", fileController.ListShares)
		files.DELETE("/:id/shares/:shareId", fileController.RevokeShare)

		files.GET("/:id/versions", fileController.GetVersions)
		files.POST("/:id/restore", fileController.RestoreVersion) // ?versionNumber=N
	}

	// Kept outside /files to avoid conflicts with the /files/:id pattern
	browse := rg.Group("")
	browse.Use(middleware.AuthMiddleware(jwtSecret))
	{
		browse.GET("/contents", fileController.ListFolderContents) // GET /contents?folderId
		browse.GET("/shared/:shareLink", fileController.GetByShareLink)
	}
}

func RegisterNotificationRoutes(rg *gin.RouterGroup, jwtSecret string, notificationController *controllers.NotificationController) {
	notifications := rg.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware(jwtSecret))
	{
		notifications.GET("", notificationController.List)
	}
}
