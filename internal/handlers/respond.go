package handlers

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/taskhive-dev/taskhive/internal/apperrors"
)

// respondError is the single exit point for handler failures: it maps
// the error taxonomy to a status code and a {"error": msg} body.
// Internal causes are logged server-side and never reach the client.
func respondError(ctx *gin.Context, err error) {
	var appErr *apperrors.Error

	if !errors.As(err, &appErr) || appErr.Kind == apperrors.KindInternal {
		log.Printf("%s %s: %v", ctx.Request.Method, ctx.Request.URL.Path, err)
	}

	ctx.JSON(apperrors.Status(err), gin.H{"error": apperrors.Message(err)})
}
