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

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

type ProjectMemberResponse struct {
	UserID      uint   `json:"user_id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Role        string `json:"role"`
}

type ProjectResponse struct {
	ID          uint                    `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Color       string                  `json:"color"`
	TaskCount   int64                   `json:"task_count"`
	Members     []ProjectMemberResponse `json:"members"`
	CreatedAt   time.Time               `json:"created_at"`
}

type TasksSummary struct {
	Total      int64 `json:"total"`
	Todo       int64 `json:"todo"`
	InProgress int64 `json:"in_progress"`
	InReview   int64 `json:"in_review"`
	Completed  int64 `json:"completed"`
}

type ProjectDetailResponse struct {
	ProjectResponse
	TasksSummary TasksSummary `json:"tasks_summary"`
}

func memberResponses(members []models.ProjectMember) []ProjectMemberResponse {
	out := make([]ProjectMemberResponse, 0, len(members))

	for _, m := range members {
		out = append(out, ProjectMemberResponse{
			UserID:      m.UserID,
			Email:       m.User.Email,
			Username:    m.User.Username,
			DisplayName: m.User.DisplayName,
			AvatarURL:   m.User.AvatarURL,
			Role:        m.Role,
		})
	}

	return out
}

func projectResponse(p *models.Project, taskCount int64) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		TaskCount:   taskCount,
		Members:     memberResponses(p.Members),
		CreatedAt:   p.CreatedAt,
	}
}

func CreateProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	var body CreateProjectRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("Project name is required"))
		return
	}

	body.Name = strings.TrimSpace(body.Name)

	if body.Name == "" {
		respondError(ctx, apperrors.Validation("Project name is required"))
		return
	}

	if body.Color == "" {
		body.Color = types.DefaultProjectColor
	}

	project := models.Project{
		Name:        body.Name,
		Description: body.Description,
		Color:       body.Color,
	}

	// The project and its owner membership must exist together or not
	// at all.
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		member := models.ProjectMember{
			ProjectID: project.ID,
			UserID:    userID,
			Role:      types.RoleOwner,
		}

		return tx.Create(&member).Error
	})

	if err != nil {
		respondError(ctx, apperrors.Internal("creating project", err))
		return
	}

	if err := db.DB.Preload("Members.User").First(&project, project.ID).Error; err != nil {
		respondError(ctx, apperrors.Internal("loading project", err))
		return
	}

	ctx.JSON(http.StatusCreated, projectResponse(&project, 0))
}

func ListProjects(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	var projects []models.Project

	if err := db.DB.Scopes(authz.Projects(userID)).
		Preload("Members.User").
		Order("projects.created_at DESC").
		Find(&projects).Error; err != nil {
		respondError(ctx, apperrors.Internal("listing projects", err))
		return
	}

	taskCounts := make(map[uint]int64)

	var counts []struct {
		ProjectID uint
		Count     int64
	}

	if err := db.DB.Model(&models.Task{}).
		Select("project_id, COUNT(*) AS count").
		Where("project_id IN (?)", authz.ProjectIDs(userID)).
		Group("project_id").
		Scan(&counts).Error; err != nil {
		respondError(ctx, apperrors.Internal("counting tasks", err))
		return
	}

	for _, c := range counts {
		taskCounts[c.ProjectID] = c.Count
	}

	response := make([]ProjectResponse, 0, len(projects))

	for i := range projects {
		response = append(response, projectResponse(&projects[i], taskCounts[projects[i].ID]))
	}

	ctx.JSON(http.StatusOK, response)
}

func GetProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	projectID, err := utils.ParamID(ctx, "project_id")

	if err != nil {
		respondError(ctx, apperrors.NotFound("Project not found"))
		return
	}

	var project models.Project

	if err := db.DB.Scopes(authz.Projects(userID)).
		Preload("Members.User").
		First(&project, "projects.id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.NotFound("Project not found"))
		} else {
			respondError(ctx, apperrors.Internal("fetching project", err))
		}
		return
	}

	var summary TasksSummary

	var statusCounts []struct {
		Status string
		Count  int64
	}

	if err := db.DB.Model(&models.Task{}).
		Select("status, COUNT(*) AS count").
		Where("project_id = ?", project.ID).
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		respondError(ctx, apperrors.Internal("summarizing tasks", err))
		return
	}

	for _, c := range statusCounts {
		summary.Total += c.Count

		switch c.Status {
		case types.StatusTodo:
			summary.Todo = c.Count
		case types.StatusInProgress:
			summary.InProgress = c.Count
		case types.StatusInReview:
			summary.InReview = c.Count
		case types.StatusCompleted:
			summary.Completed = c.Count
		}
	}

	ctx.JSON(http.StatusOK, ProjectDetailResponse{
		ProjectResponse: projectResponse(&project, summary.Total),
		TasksSummary:    summary,
	})
}

func UpdateProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	projectID, err := utils.ParamID(ctx, "project_id")

	if err != nil {
		respondError(ctx, apperrors.NotFound("Project not found"))
		return
	}

	var body UpdateProjectRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("Invalid request"))
		return
	}

	var project models.Project

	if err := db.DB.Scopes(authz.Projects(userID)).
		First(&project, "projects.id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.NotFound("Project not found"))
		} else {
			respondError(ctx, apperrors.Internal("fetching project", err))
		}
		return
	}

	updates := make(map[string]interface{})

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)

		if name == "" {
			respondError(ctx, apperrors.Validation("Project name must not be empty"))
			return
		}

		updates["name"] = name
	}

	if body.Description != nil {
		updates["description"] = *body.Description
	}

	if body.Color != nil {
		updates["color"] = *body.Color
	}

	if len(updates) > 0 {
		if err := db.DB.Model(&project).Updates(updates).Error; err != nil {
			respondError(ctx, apperrors.Internal("updating project", err))
			return
		}
	}

	if err := db.DB.Preload("Members.User").First(&project, project.ID).Error; err != nil {
		respondError(ctx, apperrors.Internal("loading project", err))
		return
	}

	var taskCount int64

	if err := db.DB.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&taskCount).Error; err != nil {
		respondError(ctx, apperrors.Internal("counting tasks", err))
		return
	}

	ctx.JSON(http.StatusOK, projectResponse(&project, taskCount))
}

func DeleteProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		respondError(ctx, apperrors.Authentication("User not authenticated"))
		return
	}

	projectID, err := utils.ParamID(ctx, "project_id")

	if err != nil {
		respondError(ctx, apperrors.NotFound("Project not found"))
		return
	}

	member, err := authz.Membership(userID, projectID)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.NotFound("Project not found"))
		} else {
			respondError(ctx, apperrors.Internal("fetching membership", err))
		}
		return
	}

	// The one place visibility and permission diverge: a member who is
	// not the owner can see the project, so Forbidden does not leak
	// anything here.
	if member.Role != types.RoleOwner {
		respondError(ctx, apperrors.Authorization("Only the project owner can delete a project"))
		return
	}

	var storedNames []string

	if err := db.DB.Model(&models.Attachment{}).
		Where("task_id IN (?)", db.DB.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID)).
		Pluck("stored_name", &storedNames).Error; err != nil {
		respondError(ctx, apperrors.Internal("listing attachments", err))
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID)

		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}

		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", projectID).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", projectID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Project{}, projectID).Error
	})

	if err != nil {
		respondError(ctx, apperrors.Internal("deleting project", err))
		return
	}

	// Best effort: records are gone, orphaned files are harmless.
	for _, name := range storedNames {
		_ = store.Remove(name)
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
