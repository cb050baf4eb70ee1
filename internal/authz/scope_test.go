package authz

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/models"
	"github.com/taskhive-dev/taskhive/internal/types"
	"gorm.io/gorm"
)

// fixture: alice owns "Launch" with bob as member, carol owns her own
// project and shares nothing with them.
type fixture struct {
	alice, bob, carol models.User
	launch, solo      models.Project
	task, soloTask    models.Task
}

func setupDB(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:authz_%s?mode=memory&cache=shared", t.Name())
	require.NoError(t, db.Connect(sqlite.Open(dsn)))
	require.NoError(t, db.MigrateDatabase())

	f := &fixture{
		alice: models.User{Email: "alice@example.com", Username: "alice", PasswordHash: "x"},
		bob:   models.User{Email: "bob@example.com", Username: "bob", PasswordHash: "x"},
		carol: models.User{Email: "carol@example.com", Username: "carol", PasswordHash: "x"},
	}

	require.NoError(t, db.DB.Create(&f.alice).Error)
	require.NoError(t, db.DB.Create(&f.bob).Error)
	require.NoError(t, db.DB.Create(&f.carol).Error)

	f.launch = models.Project{Name: "Launch", Color: types.DefaultProjectColor}
	f.solo = models.Project{Name: "Solo", Color: types.DefaultProjectColor}
	require.NoError(t, db.DB.Create(&f.launch).Error)
	require.NoError(t, db.DB.Create(&f.solo).Error)

	memberships := []models.ProjectMember{
		{ProjectID: f.launch.ID, UserID: f.alice.ID, Role: types.RoleOwner},
		{ProjectID: f.launch.ID, UserID: f.bob.ID, Role: types.RoleMember},
		{ProjectID: f.solo.ID, UserID: f.carol.ID, Role: types.RoleOwner},
	}
	require.NoError(t, db.DB.Create(&memberships).Error)

	f.task = models.Task{
		Title: "Write docs", Status: types.StatusTodo, Priority: types.PriorityMedium,
		ProjectID: f.launch.ID, CreatorID: f.alice.ID,
	}
	f.soloTask = models.Task{
		Title: "Private work", Status: types.StatusTodo, Priority: types.PriorityMedium,
		ProjectID: f.solo.ID, CreatorID: f.carol.ID,
	}
	require.NoError(t, db.DB.Create(&f.task).Error)
	require.NoError(t, db.DB.Create(&f.soloTask).Error)

	return f
}

func TestProjectsScopeLimitsToMemberships(t *testing.T) {
	f := setupDB(t)

	var visible []models.Project
	require.NoError(t, db.DB.Scopes(Projects(f.alice.ID)).Find(&visible).Error)
	require.Len(t, visible, 1)
	assert.Equal(t, f.launch.ID, visible[0].ID)

	require.NoError(t, db.DB.Scopes(Projects(f.carol.ID)).Find(&visible).Error)
	require.Len(t, visible, 1)
	assert.Equal(t, f.solo.ID, visible[0].ID)
}

func TestTasksScopeHidesForeignProjects(t *testing.T) {
	f := setupDB(t)

	// bob is a plain member but sees the project's tasks
	var visible []models.Task
	require.NoError(t, db.DB.Scopes(Tasks(f.bob.ID)).Find(&visible).Error)
	require.Len(t, visible, 1)
	assert.Equal(t, f.task.ID, visible[0].ID)

	// carol addressing the launch task by id misses entirely
	var task models.Task
	err := db.DB.Scopes(Tasks(f.carol.ID)).First(&task, "tasks.id = ?", f.task.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCommentsAndAttachmentsScopeTransitively(t *testing.T) {
	f := setupDB(t)

	comment := models.Comment{Content: "hi", TaskID: f.task.ID, UserID: f.alice.ID}
	require.NoError(t, db.DB.Create(&comment).Error)

	attachment := models.Attachment{
		FileName: "a.txt", StoredName: "1-a.txt", URL: "/uploads/1-a.txt",
		Size: 1, TaskID: f.task.ID, UploaderID: f.alice.ID,
	}
	require.NoError(t, db.DB.Create(&attachment).Error)

	var comments []models.Comment
	require.NoError(t, db.DB.Scopes(Comments(f.bob.ID)).Find(&comments).Error)
	assert.Len(t, comments, 1)

	require.NoError(t, db.DB.Scopes(Comments(f.carol.ID)).Find(&comments).Error)
	assert.Empty(t, comments)

	var attachments []models.Attachment
	require.NoError(t, db.DB.Scopes(Attachments(f.bob.ID)).Find(&attachments).Error)
	assert.Len(t, attachments, 1)

	require.NoError(t, db.DB.Scopes(Attachments(f.carol.ID)).Find(&attachments).Error)
	assert.Empty(t, attachments)
}

func TestMembershipRoles(t *testing.T) {
	f := setupDB(t)

	owner, err := Membership(f.alice.ID, f.launch.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleOwner, owner.Role)

	member, err := Membership(f.bob.ID, f.launch.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleMember, member.Role)

	_, err = Membership(f.carol.ID, f.launch.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestIsMember(t *testing.T) {
	f := setupDB(t)

	ok, err := IsMember(f.bob.ID, f.launch.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsMember(f.bob.ID, f.solo.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsMember(f.bob.ID, 99999)
	require.NoError(t, err)
	assert.False(t, ok)
}
