package controllers

import (
	"strconv"

	"cloudbox/services"
	"cloudbox/utils"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	notificationService *services.NotificationService
}

func NewNotificationController(notificationService *services.NotificationService) *NotificationController {
	return &NotificationController{notificationService: notificationService}
}

// List handles GET /notifications?limit=N.
func (nc *NotificationController) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit < 1 || limit > 200 {
		utils.BadRequestResponse(c, "limit must be between 1 and 200", nil)
		return
	}

	notifications, err := nc.notificationService.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Notifications retrieved successfully", notifications)
}
