package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/apperrors"
	"github.com/taskhive-dev/taskhive/internal/authz"
	"github.com/taskhive-dev/taskhive/internal/models"
	"github.com/taskhive-dev/taskhive/internal/storage"
	"github.com/taskhive-dev/taskhive/internal/types"
	"github.com/taskhive-dev/taskhive/internal/utils"
)

var store *storage.LocalStore

// InitStorage installs the attachment store. Called once at process
// start before the router begins serving.
func InitStorage(s *storage.LocalStore) {
	store = s
}

type AttachmentResponse struct {
	ID         uint      `json:"id"`
	FileName   string    `json:"file_name"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	TaskID     uint      `json:"task_id"`
	UploaderID uint      `json:"uploader_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func attachmentResponses(attachments []models.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(attachments))

	for _, a := range attachments {
		out = append(out, AttachmentResponse{
			ID:         a.ID,
			FileName:   a.FileName,
			URL:        a.URL,
			Size:       a.Size,
			MimeType:   a.MimeType,
			TaskID:     a.TaskID,
			UploaderID: a.UploaderID,
			CreatedAt:  a.CreatedAt,
		})
	}

	return out
}

func ListAttachments(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	task, ok := visibleTask(ctx, userID)

	if !ok {
		return
	}

	var attachments []models.Attachment

	if err := db.DB.Scopes(authz.Attachments(userID)).
		Where("attachments.task_id = ?", task.ID).
		Order("attachments.created_at ASC").
		Find(&attachments).Error; err != nil {
		respondError(ctx, apperrors.Internal("listing attachments", err))
		return
	}

	ctx.JSON(http.StatusOK, attachmentResponses(attachments))
}

// CreateAttachment accepts one multipart file per request. Membership
// is confirmed and the size ceiling enforced before anything touches
// disk.
func CreateAttachment(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	task, ok := visibleTask(ctx, userID)

	if !ok {
		return
	}

	fileHeader, err := ctx.FormFile("file")

	if err != nil {
		respondError(ctx, apperrors.Validation("A file is required"))
		return
	}

	if fileHeader.Size > types.MaxAttachmentSize {
		respondError(ctx, apperrors.Validation("File exceeds the 10 MiB limit"))
		return
	}

	src, err := fileHeader.Open()

	if err != nil {
		respondError(ctx, apperrors.Internal("opening upload", err))
		return
	}

	defer src.Close()

	storedName := store.StoredName(fileHeader.Filename)

	if err := store.Save(storedName, src); err != nil {
		respondError(ctx, apperrors.Internal("saving file", err))
		return
	}

	attachment := models.Attachment{
		FileName:   fileHeader.Filename,
		StoredName: storedName,
		URL:        "/uploads/" + storedName,
		Size:       fileHeader.Size,
		MimeType:   fileHeader.Header.Get("Content-Type"),
		TaskID:     task.ID,
		UploaderID: userID,
	}

	if err := db.DB.Create(&attachment).Error; err != nil {
		_ = store.Remove(storedName)
		respondError(ctx, apperrors.Internal("recording attachment", err))
		return
	}

	responses := attachmentResponses([]models.Attachment{attachment})
	ctx.JSON(http.StatusCreated, responses[0])
}
