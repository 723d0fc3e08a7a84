package routes

import (
	"cloudbox/controllers"
	"cloudbox/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterAuthRoutes(rg *gin.RouterGroup, jwtSecret string, authController *controllers.AuthController) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/me", authController.GetUserProfile)
		}
	}
}
