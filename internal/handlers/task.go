package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
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

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	ProjectID   uint       `json:"project_id" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  *uint      `json:"assignee_id"`
}

// UpdateTaskRequest carries partial-update semantics: nil pointer means
// "leave untouched". due_date and assignee_id are raw JSON so an
// explicit null (clear the field) stays distinguishable from absence.
type UpdateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	DueDate     json.RawMessage `json:"due_date"`
	AssigneeID  json.RawMessage `json:"assignee_id"`
}

type TaskResponse struct {
	ID              uint                `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Status          string              `json:"status"`
	Priority        string              `json:"priority"`
	DueDate         *time.Time          `json:"due_date"`
	ProjectID       uint                `json:"project_id"`
	CreatorID       uint                `json:"creator_id"`
	AssigneeID      *uint               `json:"assignee_id"`
	Assignee        *types.UserResponse `json:"assignee"`
	CommentCount    int64               `json:"comment_count"`
	AttachmentCount int64               `json:"attachment_count"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type TaskDetailResponse struct {
	TaskResponse
	Comments    []CommentResponse    `json:"comments"`
	Attachments []AttachmentResponse `json:"attachments"`
}

var jsonNull = []byte("null")

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

func taskResponse(t *models.Task, commentCount, attachmentCount int64) TaskResponse {
	resp := TaskResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Status:          t.Status,
		Priority:        t.Priority,
		DueDate:         t.DueDate,
		ProjectID:       t.ProjectID,
		CreatorID:       t.CreatorID,
		AssigneeID:      t.AssigneeID,
		CommentCount:    commentCount,
		AttachmentCount: attachmentCount,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}

	if t.Assignee != nil {
		assignee := userResponse(t.Assignee)
		resp.Assignee = &assignee
	}

	return resp
}

func CreateTask(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	var body CreateTaskRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("Title and project_id are required"))
		return
	}

	body.Title = strings.TrimSpace(body.Title)

	if body.Title == "" {
		respondError(ctx, apperrors.Validation("Title and project_id are required"))
		return
	}

	// Inaccessible and nonexistent projects answer the same way.
	member, err := authz.IsMember(userID, body.ProjectID)

	if err != nil {
		respondError(ctx, apperrors.Internal("checking membership", err))
		return
	}

	if !member {
		respondError(ctx, apperrors.NotFound("Project not found"))
		return
	}

	if body.Status == "" {
		body.Status = types.StatusTodo
	}

	if body.Priority == "" {
		body.Priority = types.PriorityMedium
	}

	if !types.ValidStatus(body.Status) {
		respondError(ctx, apperrors.Validation("Invalid task status"))
		return
	}

	if !types.ValidPriority(body.Priority) {
		respondError(ctx, apperrors.Validation("Invalid task priority"))
		return
	}

	task := models.Task{
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		Priority:    body.Priority,
		DueDate:     body.DueDate,
		ProjectID:   body.ProjectID,
		CreatorID:   userID,
		AssigneeID:  body.AssigneeID,
	}

	if err := db.DB.Create(&task).Error; err != nil {
		respondError(ctx, apperrors.Internal("creating task", err))
		return
	}

	if err := db.DB.Preload("Assignee").First(&task, task.ID).Error; err != nil {
		respondError(ctx, apperrors.Internal("loading task", err))
		return
	}

	ctx.JSON(http.StatusCreated, taskResponse(&task, 0, 0))
}

func ListTasks(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	query := db.DB.Scopes(authz.Tasks(userID)).Preload("Assignee")

	if raw := ctx.Query("project_id"); raw != "" {
		projectID, err := strconv.ParseUint(raw, 10, 32)

		if err != nil {
			respondError(ctx, apperrors.Validation("Invalid project_id filter"))
			return
		}

		query = query.Where("tasks.project_id = ?", uint(projectID))
	}

	if status := ctx.Query("status"); status != "" {
		query = query.Where("tasks.status = ?", status)
	}

	if raw := ctx.Query("assignee_id"); raw != "" {
		assigneeID, err := strconv.ParseUint(raw, 10, 32)

		if err != nil {
			respondError(ctx, apperrors.Validation("Invalid assignee_id filter"))
			return
		}

		query = query.Where("tasks.assignee_id = ?", uint(assigneeID))
	}

	var tasks []models.Task

	if err := query.Order("tasks.created_at DESC").Find(&tasks).Error; err != nil {
		respondError(ctx, apperrors.Internal("listing tasks", err))
		return
	}

	commentCounts, attachmentCounts, err := taskAssociationCounts(userID)

	if err != nil {
		respondError(ctx, apperrors.Internal("counting associations", err))
		return
	}

	response := make([]TaskResponse, 0, len(tasks))

	for i := range tasks {
		t := &tasks[i]
		response = append(response, taskResponse(t, commentCounts[t.ID], attachmentCounts[t.ID]))
	}

	ctx.JSON(http.StatusOK, response)
}

func taskAssociationCounts(userID uint) (map[uint]int64, map[uint]int64, error) {
	type row struct {
		TaskID uint
		Count  int64
	}

	commentCounts := make(map[uint]int64)
	attachmentCounts := make(map[uint]int64)

	var rows []row

	if err := db.DB.Model(&models.Comment{}).
		Select("task_id, COUNT(*) AS count").
		Where("task_id IN (?)", authz.TaskIDs(userID)).
		Group("task_id").
		Scan(&rows).Error; err != nil {
		return nil, nil, err
	}

	for _, r := range rows {
		commentCounts[r.TaskID] = r.Count
	}

	var attachmentRows []row

	if err := db.DB.Model(&models.Attachment{}).
		Select("task_id, COUNT(*) AS count").
		Where("task_id IN (?)", authz.TaskIDs(userID)).
		Group("task_id").
		Scan(&attachmentRows).Error; err != nil {
		return nil, nil, err
	}

	for _, r := range attachmentRows {
		attachmentCounts[r.TaskID] = r.Count
	}

	return commentCounts, attachmentCounts, nil
}

func GetTask(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	taskID, err := utils.ParamID(ctx, "task_id")

	if err != nil {
		respondError(ctx, apperrors.NotFound("Task not found"))
		return
	}

	var task models.Task

	if err := db.DB.Scopes(authz.Tasks(userID)).
		Preload("Assignee").
		Preload("Comments.User").
		Preload("Attachments").
		First(&task, "tasks.id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.NotFound("Task not found"))
		} else {
			respondError(ctx, apperrors.Internal("fetching task", err))
		}
		return
	}

	detail := TaskDetailResponse{
		TaskResponse: taskResponse(&task, int64(len(task.Comments)), int64(len(task.Attachments))),
		Comments:     commentResponses(task.Comments),
		Attachments:  attachmentResponses(task.Attachments),
	}

	ctx.JSON(http.StatusOK, detail)
}

func UpdateTask(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	taskID, err := utils.ParamID(ctx, "task_id")

	if err != nil {
		respondError(ctx, apperrors.NotFound("Task not found"))
		return
	}

	var body UpdateTaskRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("Invalid request"))
		return
	}

	var task models.Task

	if err := db.DB.Scopes(authz.Tasks(userID)).
		First(&task, "tasks.id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.NotFound("Task not found"))
		} else {
			respondError(ctx, apperrors.Internal("fetching task", err))
		}
		return
	}

	updates := make(map[string]interface{})

	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)

		if title == "" {
			respondError(ctx, apperrors.Validation("Title must not be empty"))
			return
		}

		updates["title"] = title
	}

	if body.Description != nil {
		updates["description"] = *body.Description
	}

	if body.Status != nil {
		if !types.ValidStatus(*body.Status) {
			respondError(ctx, apperrors.Validation("Invalid task status"))
			return
		}

		updates["status"] = *body.Status
	}

	if body.Priority != nil {
		if !types.ValidPriority(*body.Priority) {
			respondError(ctx, apperrors.Validation("Invalid task priority"))
			return
		}

		updates["priority"] = *body.Priority
	}

	if len(body.DueDate) > 0 {
		if isJSONNull(body.DueDate) {
			updates["due_date"] = nil
		} else {
			var due time.Time

			if err := json.Unmarshal(body.DueDate, &due); err != nil {
				respondError(ctx, apperrors.Validation("Invalid due date"))
				return
			}

			updates["due_date"] = due
		}
	}

	if len(body.AssigneeID) > 0 {
		if isJSONNull(body.AssigneeID) {
			updates["assignee_id"] = nil
		} else {
			var assigneeID uint

			if err := json.Unmarshal(body.AssigneeID, &assigneeID); err != nil {
				respondError(ctx, apperrors.Validation("Invalid assignee id"))
				return
			}

			updates["assignee_id"] = assigneeID
		}
	}

	if len(updates) > 0 {
		if err := db.DB.Model(&task).Updates(updates).Error; err != nil {
			respondError(ctx, apperrors.Internal("updating task", err))
			return
		}
	}

	if err := db.DB.Preload("Assignee").First(&task, task.ID).Error; err != nil {
		respondError(ctx, apperrors.Internal("loading task", err))
		return
	}

	var commentCount, attachmentCount int64

	if err := db.DB.Model(&models.Comment{}).Where("task_id = ?", task.ID).Count(&commentCount).Error; err != nil {
		respondError(ctx, apperrors.Internal("counting comments", err))
		return
	}

	if err := db.DB.Model(&models.Attachment{}).Where("task_id = ?", task.ID).Count(&attachmentCount).Error; err != nil {
		respondError(ctx, apperrors.Internal("counting attachments", err))
		return
	}

	ctx.JSON(http.StatusOK, taskResponse(&task, commentCount, attachmentCount))
}

func DeleteTask(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	taskID, err := utils.ParamID(ctx, "task_id")

	if err != nil {
		respondError(ctx, apperrors.NotFound("Task not found"))
		return
	}

	var task models.Task

	if err := db.DB.Scopes(authz.Tasks(userID)).
		First(&task, "tasks.id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.NotFound("Task not found"))
		} else {
			respondError(ctx, apperrors.Internal("fetching task", err))
		}
		return
	}

	var storedNames []string

	if err := db.DB.Model(&models.Attachment{}).
		Where("task_id = ?", task.ID).
		Pluck("stored_name", &storedNames).Error; err != nil {
		respondError(ctx, apperrors.Internal("listing attachments", err))
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}

		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		return tx.Delete(&task).Error
	})

	if err != nil {
		respondError(ctx, apperrors.Internal("deleting task", err))
		return
	}

	for _, name := range storedNames {
		_ = store.Remove(name)
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
