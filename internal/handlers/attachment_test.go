package handlers_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/models"
	"github.com/taskhive-dev/taskhive/internal/types"
)

func TestUploadAttachment(t *testing.T) {
	r := setupServer(t)

	token, userID := registerUser(t, r, "alice@example.com", "alice")
	projectID := createProject(t, r, token, "Launch")
	taskID := createTask(t, r, token, projectID, "Write docs")

	path := fmt.Sprintf("/api/tasks/%d/attachments", taskID)

	w := doUpload(t, r, path, token, "notes.txt", []byte("remember the docs"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "notes.txt", body["file_name"])
	assert.Equal(t, float64(len("remember the docs")), body["size"])
	assert.Equal(t, userID, asID(t, body["uploader_id"]))

	url, _ := body["url"].(string)
	require.NotEmpty(t, url)

	// the stored file is served back from the static path
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "remember the docs", resp.Body.String())
}

func TestUploadWithoutFile(t *testing.T) {
	r := setupServer(t)

	token, _ := registerUser(t, r, "alice@example.com", "alice")
	projectID := createProject(t, r, token, "Launch")
	taskID := createTask(t, r, token, projectID, "Write docs")

	w := doUpload(t, r, fmt.Sprintf("/api/tasks/%d/attachments", taskID), token, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	r := setupServer(t)

	token, _ := registerUser(t, r, "alice@example.com", "alice")
	projectID := createProject(t, r, token, "Launch")
	taskID := createTask(t, r, token, projectID, "Write docs")

	oversize := bytes.Repeat([]byte{0}, types.MaxAttachmentSize+1)

	w := doUpload(t, r, fmt.Sprintf("/api/tasks/%d/attachments", taskID), token, "huge.bin", oversize)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// nothing was recorded
	w2 := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d/attachments", taskID), token, nil)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Empty(t, decodeList(t, w2))
}

func TestUploadHiddenTaskIs404(t *testing.T) {
	r := setupServer(t)

	aliceToken, _ := registerUser(t, r, "alice@example.com", "alice")
	carolToken, _ := registerUser(t, r, "carol@example.com", "carol")

	projectID := createProject(t, r, aliceToken, "Launch")
	taskID := createTask(t, r, aliceToken, projectID, "Write docs")

	w := doUpload(t, r, fmt.Sprintf("/api/tasks/%d/attachments", taskID), carolToken, "sneaky.txt", []byte("hi"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTaskCascadesAttachments(t *testing.T) {
	r := setupServer(t)

	token, _ := registerUser(t, r, "alice@example.com", "alice")
	projectID := createProject(t, r, token, "Launch")
	taskID := createTask(t, r, token, projectID, "Write docs")

	storedName := uploadAttachment(t, r, token, taskID, "notes.txt")

	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", taskID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var count int64
	require.NoError(t, db.DB.Model(&models.Attachment{}).Where("task_id = ?", taskID).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, db.DB.Model(&models.Comment{}).Where("task_id = ?", taskID).Count(&count).Error)
	assert.Zero(t, count)

	_, err := os.Stat(filepath.Join(uploadDir, storedName))
	assert.True(t, os.IsNotExist(err))
}

func TestAttachmentCountOnTask(t *testing.T) {
	r := setupServer(t)

	token, _ := registerUser(t, r, "alice@example.com", "alice")
	projectID := createProject(t, r, token, "Launch")
	taskID := createTask(t, r, token, projectID, "Write docs")

	path := fmt.Sprintf("/api/tasks/%d/attachments", taskID)

	doUpload(t, r, path, token, "a.txt", []byte("a"))
	doUpload(t, r, path, token, "b.txt", []byte("b"))

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d", taskID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["attachment_count"])
}
