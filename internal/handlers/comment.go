package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/apperrors"
	"github.com/taskhive-dev/taskhive/internal/authz"
	"github.com/taskhive-dev/taskhive/internal/models"
	"github.com/taskhive-dev/taskhive/internal/types"
	"github.com/taskhive-dev/taskhive/internal/utils"
	"gorm.io/gorm"
)

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type CommentResponse struct {
	ID        uint               `json:"id"`
	Content   string             `json:"content"`
	TaskID    uint               `json:"task_id"`
	UserID    uint               `json:"user_id"`
	Author    types.UserResponse `json:"author"`
	CreatedAt time.Time          `json:"created_at"`
}

func commentResponses(comments []models.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))

	for i := range comments {
		c := &comments[i]
		out = append(out, CommentResponse{
			ID:        c.ID,
			Content:   c.Content,
			TaskID:    c.TaskID,
			UserID:    c.UserID,
			Author:    userResponse(&c.User),
			CreatedAt: c.CreatedAt,
		})
	}

	return out
}

// visibleTask resolves a task id through the membership scope; a task
// the caller cannot see does not exist as far as they are concerned.
func visibleTask(ctx *gin.Context, userID uint) (*models.Task, bool) {
	taskID, err := utils.ParamID(ctx, "task_id")

	if err != nil {
		respondError(ctx, apperrors.NotFound("Task not found"))
		return nil, false
	}

	var task models.Task

	if err := db.DB.Scopes(authz.Tasks(userID)).
		First(&task, "tasks.id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.NotFound("Task not found"))
		} else {
			respondError(ctx, apperrors.Internal("fetching task", err))
		}
		return nil, false
	}

	return &task, true
}

func ListComments(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	task, ok := visibleTask(ctx, userID)

	if !ok {
		return
	}

	var comments []models.Comment

	if err := db.DB.Scopes(authz.Comments(userID)).
		Preload("User").
		Where("comments.task_id = ?", task.ID).
		Order("comments.created_at ASC").
		Find(&comments).Error; err != nil {
		respondError(ctx, apperrors.Internal("listing comments", err))
		return
	}

	ctx.JSON(http.StatusOK, commentResponses(comments))
}

func CreateComment(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	task, ok := visibleTask(ctx, userID)

	if !ok {
		return
	}

	var body CreateCommentRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("Comment content is required"))
		return
	}

	body.Content = strings.TrimSpace(body.Content)

	if body.Content == "" {
		respondError(ctx, apperrors.Validation("Comment content is required"))
		return
	}

	comment := models.Comment{
		Content: body.Content,
		TaskID:  task.ID,
		UserID:  userID,
	}

	if err := db.DB.Create(&comment).Error; err != nil {
		respondError(ctx, apperrors.Internal("creating comment", err))
		return
	}

	if err := db.DB.Preload("User").First(&comment, comment.ID).Error; err != nil {
		respondError(ctx, apperrors.Internal("loading comment", err))
		return
	}

	responses := commentResponses([]models.Comment{comment})
	ctx.JSON(http.StatusCreated, responses[0])
}
