package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/auth"
	"github.com/taskhive-dev/taskhive/internal/handlers"
	"github.com/taskhive-dev/taskhive/internal/router"
	"github.com/taskhive-dev/taskhive/internal/storage"
)

// uploadDir is the current test's attachment directory, so cascade
// tests can check what remains on disk.
var uploadDir string

// setupServer wires the real router against a fresh in-memory database
// and a temp upload dir, so tests exercise the full request path.
func setupServer(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	require.NoError(t, auth.Init("handler-test-secret"))

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", name)
	require.NoError(t, db.Connect(sqlite.Open(dsn)))
	require.NoError(t, db.MigrateDatabase())

	uploadDir = t.TempDir()

	store, err := storage.NewLocalStore(uploadDir)
	require.NoError(t, err)
	handlers.InitStorage(store)

	return router.NewRouter(uploadDir, []string{"http://localhost:5173"})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func doUpload(t *testing.T, r *gin.Engine, path, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()

	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	return out
}

func asID(t *testing.T, v interface{}) uint {
	t.Helper()

	f, ok := v.(float64)
	require.True(t, ok, "expected numeric id, got %T", v)

	return uint(f)
}

// registerUser registers a fresh account and returns its bearer token
// and user id.
func registerUser(t *testing.T, r *gin.Engine, email, username string) (string, uint) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    email,
		"username": username,
		"password": "pw123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	user, _ := body["user"].(map[string]interface{})
	require.NotNil(t, user)

	return token, asID(t, user["id"])
}

func createProject(t *testing.T, r *gin.Engine, token, name string) uint {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/projects", token, gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return asID(t, decode(t, w)["id"])
}

func createTask(t *testing.T, r *gin.Engine, token string, projectID uint, title string) uint {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/tasks", token, gin.H{
		"title":      title,
		"project_id": projectID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return asID(t, decode(t, w)["id"])
}

// uploadAttachment uploads a small file to a task and returns the
// stored on-disk name, derived from the record's URL.
func uploadAttachment(t *testing.T, r *gin.Engine, token string, taskID uint, filename string) string {
	t.Helper()

	w := doUpload(t, r, fmt.Sprintf("/api/tasks/%d/attachments", taskID), token, filename, []byte("attached"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	url, _ := decode(t, w)["url"].(string)
	require.True(t, strings.HasPrefix(url, "/uploads/"), url)

	return strings.TrimPrefix(url, "/uploads/")
}

func inviteMember(t *testing.T, r *gin.Engine, token string, projectID uint, email string) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/projects/%d/members", projectID), token, gin.H{"email": email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
