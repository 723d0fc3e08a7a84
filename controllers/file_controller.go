package controllers

import (
	"strconv"

	"cloudbox/middleware"
	"cloudbox/models"
	"cloudbox/services"
	"cloudbox/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FileController struct {
	fileService *services.FileService
	validator   *validator.Validate
	maxFileSize int64
}

type CreateFolderRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type ShareRequest struct {
	TargetUserID string `json:"targetUserId" validate:"required,len=24,hexadecimal"`
	AccessLevel  string `json:"accessLevel" validate:"required,oneof=view edit View Edit"`
}

type ShareResponse struct {
	ShareID     primitive.ObjectID `json:"share_id"`
	ShareLink   string             `json:"share_link"`
	AccessLevel models.AccessLevel `json:"access_level"`
}

func NewFileController(fileService *services.FileService, maxFileSize int64) *FileController {
	return &FileController{
		fileService: fileService,
		validator:   validator.New(),
		maxFileSize: maxFileSize,
	}
}

// Upload handles POST /files/upload with a multipart "file" field.
func (fc *FileController) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	parentID, ok := optionalObjectID(c, "parentFolderId")
	if !ok {
		return
	}
	fileEntryID, ok := optionalObjectID(c, "fileEntryId")
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file uploaded", err.Error())
		return
	}
	if err := utils.ValidateFileName(header.Filename); err != nil {
		utils.BadRequestResponse(c, "Invalid file name", err.Error())
		return
	}
	if err := utils.ValidateFileSize(header.Size, fc.maxFileSize); err != nil {
		utils.BadRequestResponse(c, "Invalid file", err.Error())
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read uploaded file", err.Error())
		return
	}
	defer file.Close()

	dto, err := fc.fileService.Upload(c.Request.Context(), services.FileUpload{
		Content:     file,
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}, userID, parentID, fileEntryID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}

	if fileEntryID != nil {
		utils.SuccessResponse(c, "File updated successfully", dto)
		return
	}
	utils.CreatedResponse(c, "File uploaded successfully", dto)
}

func (fc *FileController) CreateFolder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	parentID, ok := optionalObjectID(c, "parentFolderId")
	if !ok {
		return
	}

	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}
	if err := fc.validator.Struct(req); err != nil {
		utils.BadRequestResponse(c, "Validation failed", err.Error())
		return
	}
	if err := utils.ValidateFolderName(req.Name); err != nil {
		utils.BadRequestResponse(c, "Invalid folder name", err.Error())
		return
	}

	dto, err := fc.fileService.CreateFolder(c.Request.Context(), req.Name, userID, parentID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.CreatedResponse(c, "Folder created successfully", dto)
}

func (fc *FileController) GetFileOrFolder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	dto, err := fc.fileService.GetFileOrFolder(c.Request.Context(), id, userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Entry retrieved successfully", dto)
}

// Download answers with a short-lived direct link to the file content.
func (fc *FileController) Download(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	link, err := fc.fileService.GetDownloadURL(c.Request.Context(), id, userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Download link generated successfully", gin.H{"url": link})
}

func (fc *FileController) GetByShareLink(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	dto, err := fc.fileService.GetByShareLink(c.Request.Context(), c.Param("shareLink"), userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Shared entry retrieved successfully", dto)
}

func (fc *FileController) Share(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}
	if err := fc.validator.Struct(req); err != nil {
		utils.BadRequestResponse(c, "Validation failed", err.Error())
		return
	}
	targetID, err := primitive.ObjectIDFromHex(req.TargetUserID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid target user ID", nil)
		return
	}
	level, err := models.ParseAccessLevel(req.AccessLevel)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}

	share, err := fc.fileService.ShareFileOrFolder(c.Request.Context(), id, userID, targetID, level)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.CreatedResponse(c, "Shared successfully", ShareResponse{
		ShareID:     share.ID,
		ShareLink:   share.ShareLink,
		AccessLevel: share.AccessLevel,
	})
}

func (fc *FileController) ListShares(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	shares, err := fc.fileService.ListShares(c.Request.Context(), id, userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	if shares == nil {
		shares = []models.SharedAccess{}
	}
	utils.SuccessResponse(c, "Shares retrieved successfully", shares)
}

func (fc *FileController) RevokeShare(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	shareID, ok := pathObjectID(c, "shareId")
	if !ok {
		return
	}

	if err := fc.fileService.RevokeShare(c.Request.Context(), id, userID, shareID); err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Share revoked successfully", nil)
}

// ListFolderContents handles GET /contents, with an optional folderId.
func (fc *FileController) ListFolderContents(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	folderID, ok := optionalObjectID(c, "folderId")
	if !ok {
		return
	}

	contents, err := fc.fileService.ListFolderContents(c.Request.Context(), folderID, userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Folder contents retrieved successfully", contents)
}

func (fc *FileController) GetVersions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	versions, err := fc.fileService.GetFileVersions(c.Request.Context(), id, userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Versions retrieved successfully", versions)
}

func (fc *FileController) RestoreVersion(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	versionNumber, err := strconv.Atoi(c.Query("versionNumber"))
	if err != nil || versionNumber < 1 {
		utils.BadRequestResponse(c, "versionNumber must be a positive integer", nil)
		return
	}

	dto, err := fc.fileService.RestoreFileVersion(c.Request.Context(), id, userID, versionNumber)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Version restored successfully", dto)
}

func (fc *FileController) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := fc.fileService.DeleteFileOrFolder(c.Request.Context(), id, userID); err != nil {
		utils.RespondWithError(c, err)
		return
	}
	utils.SuccessResponse(c, "Deleted successfully", nil)
}

func requireUser(c *gin.Context) (primitive.ObjectID, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return primitive.NilObjectID, false
	}
	return userID, true
}

func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return primitive.NilObjectID, false
	}
	return id, true
}

// optionalObjectID reads a query parameter. Absent means nil.
func optionalObjectID(c *gin.Context, name string) (*primitive.ObjectID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return nil, false
	}
	return &id, true
}
