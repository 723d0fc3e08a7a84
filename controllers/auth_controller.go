package controllers

import (
	"errors"

	"cloudbox/models"
	"cloudbox/services"
	"cloudbox/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type AuthController struct {
	authService *services.AuthService
	validator   *validator.Validate
}

func NewAuthController(authService *services.AuthService) *AuthController {
	return &AuthController{
		authService: authService,
		validator:   validator.New(),
	}
}

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (ac *AuthController) Register(c *gin.Context) {
	var req CredentialsRequest
	if !ac.bind(c, &req) {
		return
	}

	user, err := ac.authService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.CreatedResponse(c, "User registered successfully", user)
}

func (ac *AuthController) Login(c *gin.Context) {
	var req CredentialsRequest
	if !ac.bind(c, &req) {
		return
	}

	token, user, err := ac.authService.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, models.ErrUnauthorized) {
		utils.UnauthorizedResponse(c, "Invalid email or password")
		return
	}
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Login successful", gin.H{
		"token": token,
		"user":  user,
	})
}

func (ac *AuthController) bind(c *gin.Context, req *CredentialsRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return false
	}
	if err := ac.validator.Struct(req); err != nil {
		utils.BadRequestResponse(c, "Validation failed", err.Error())
		return false
	}
	return true
}

func (ac *AuthController) GetUserProfile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := ac.authService.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "User profile retrieved successfully", user)
}
