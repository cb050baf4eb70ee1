package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/apperrors"
	"github.com/taskhive-dev/taskhive/internal/authz"
	"github.com/taskhive-dev/taskhive/internal/models"
	"github.com/taskhive-dev/taskhive/internal/types"
	"github.com/taskhive-dev/taskhive/internal/utils"
	"gorm.io/gorm"
)

type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

// AddProjectMember invites an existing user to a project. Any member
// may invite; the new member defaults to role "member".
func AddProjectMember(ctx *gin.Context) {
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

	member, err := authz.IsMember(userID, projectID)

	if err != nil {
		respondError(ctx, apperrors.Internal("fetching membership", err))
		return
	}

	if !member {
		respondError(ctx, apperrors.NotFound("Project not found"))
		return
	}

	var body AddMemberRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperrors.Validation("A valid email is required"))
		return
	}

	if body.Role == "" {
		body.Role = types.RoleMember
	}

	if !types.ValidRole(body.Role) {
		respondError(ctx, apperrors.Validation("Role must be \"owner\" or \"member\""))
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	var invitee models.User

	if err := db.DB.Where("email = ?", email).First(&invitee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, apperrors.NotFound("User not found"))
		} else {
			respondError(ctx, apperrors.Internal("fetching user", err))
		}
		return
	}

	already, err := authz.IsMember(invitee.ID, projectID)

	if err != nil {
		respondError(ctx, apperrors.Internal("checking membership", err))
		return
	}

	if already {
		respondError(ctx, apperrors.Conflict("User is already a member of this project"))
		return
	}

	membership := models.ProjectMember{
		ProjectID: projectID,
		UserID:    invitee.ID,
		Role:      body.Role,
	}

	if err := db.DB.Create(&membership).Error; err != nil {
		// racing invites land on the project+user unique index
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(ctx, apperrors.Conflict("User is already a member of this project"))
			return
		}

		respondError(ctx, apperrors.Internal("adding member", err))
		return
	}

	ctx.JSON(http.StatusCreated, ProjectMemberResponse{
		UserID:      invitee.ID,
		Email:       invitee.Email,
		Username:    invitee.Username,
		DisplayName: invitee.DisplayName,
		AvatarURL:   invitee.AvatarURL,
		Role:        membership.Role,
	})
}
