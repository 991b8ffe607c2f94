package store

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/mlearn/apiserver/internal/db/dbtest"
	"github.com/mlearn/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db          *sqlx.DB
	users       *UserRepository
	courses     *CourseRepository
	enrollments *EnrollmentRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	return fixture{
		db:          conn,
		users:       NewUserRepository(conn),
		courses:     NewCourseRepository(conn),
		enrollments: NewEnrollmentRepository(conn),
	}
}

func (f fixture) createUser(t *testing.T, email string, role types.Role) types.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), types.User{
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		Name:         "User " + email,
	})
	require.NoError(t, err)
	return user
}

func (f fixture) createCourse(t *testing.T, professorID int, title string) types.Course {
	t.Helper()
	course, err := f.courses.Create(context.Background(), types.Course{
		Title:       title,
		Description: "desc",
		Category:    "Coding",
		Location:    "Online",
		Duration:    10,
		ProfessorID: professorID,
	})
	require.NoError(t, err)
	return course
}

func strPtr(s string) *string {
	return &s
}

func TestUserCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createUser(t, "s@x.com", types.RoleStudent)
	assert.NotZero(t, created.ID)

	byEmail, err := f.users.GetByEmail(ctx, "s@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, types.RoleStudent, byEmail.Role)
	assert.Nil(t, byEmail.ProfilePicture)

	byID, err := f.users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "s@x.com", byID.Email)

	_, err = f.users.GetByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "dup@x.com", types.RoleStudent)

	_, err := f.users.Create(context.Background(), types.User{
		Email:        "dup@x.com",
		PasswordHash: "other",
		Role:         types.RoleProfessor,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "p@x.com", types.RoleProfessor)

	user.Name = "Ada"
	user.City = "Paris"
	user.Interests = "Music,Travel"
	user.ProfilePicture = strPtr("/uploads/avatars/a.png")
	_, err := f.users.UpdateProfile(ctx, user)
	require.NoError(t, err)

	got, err := f.users.GetByEmail(ctx, "p@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "Paris", got.City)
	assert.Equal(t, []string{"Music", "Travel"}, got.InterestList())
	require.NotNil(t, got.ProfilePicture)
	assert.Equal(t, "/uploads/avatars/a.png", *got.ProfilePicture)
	assert.Equal(t, types.RoleProfessor, got.Role)

	_, err = f.users.UpdateProfile(ctx, types.User{Email: "nobody@x.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCourseCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prof := f.createUser(t, "p@x.com", types.RoleProfessor)

	course := f.createCourse(t, prof.ID, "Intro")
	assert.NotZero(t, course.ID)

	got, err := f.courses.Get(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro", got.Title)
	assert.Equal(t, prof.Name, got.ProfessorName)
	assert.Nil(t, got.Image)

	got.Title = "Intro II"
	got.Image = strPtr("/uploads/courses/c.png")
	_, err = f.courses.Update(ctx, got)
	require.NoError(t, err)

	got, err = f.courses.Get(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro II", got.Title)
	require.NotNil(t, got.Image)
	assert.Equal(t, "/uploads/courses/c.png", *got.Image)

	_, err = f.courses.Update(ctx, types.Course{ID: 9999, Title: "x", Description: "x", Category: "x", Location: "x", Duration: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := f.courses.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, prof.Name, all[0].ProfessorName)

	_, err = f.courses.Delete(ctx, course.ID)
	require.NoError(t, err)

	_, err = f.courses.Get(ctx, course.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.courses.Delete(ctx, course.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCourseCreateRequiresExistingProfessor(t *testing.T) {
	f := newFixture(t)

	_, err := f.courses.Create(context.Background(), types.Course{
		Title:       "Orphan",
		Description: "desc",
		Category:    "Coding",
		Location:    "Online",
		Duration:    3,
		ProfessorID: 4242,
	})
	assert.ErrorIs(t, err, ErrReferenced)
}

func TestListByProfessorCountsEnrollments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prof := f.createUser(t, "p@x.com", types.RoleProfessor)
	other := f.createUser(t, "q@x.com", types.RoleProfessor)
	s1 := f.createUser(t, "s1@x.com", types.RoleStudent)
	s2 := f.createUser(t, "s2@x.com", types.RoleStudent)

	c1 := f.createCourse(t, prof.ID, "One")
	c2 := f.createCourse(t, prof.ID, "Two")
	f.createCourse(t, other.ID, "Elsewhere")

	_, err := f.enrollments.Create(ctx, c1.ID, s1.ID)
	require.NoError(t, err)
	_, err = f.enrollments.Create(ctx, c1.ID, s2.ID)
	require.NoError(t, err)

	courses, err := f.courses.ListByProfessor(ctx, prof.ID)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, c1.ID, courses[0].ID)
	assert.Equal(t, 2, courses[0].StudentCount)
	assert.Equal(t, c2.ID, courses[1].ID)
	assert.Equal(t, 0, courses[1].StudentCount)

	none, err := f.courses.ListByProfessor(ctx, s1.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestEnrollmentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prof := f.createUser(t, "p@x.com", types.RoleProfessor)
	student := f.createUser(t, "s@x.com", types.RoleStudent)
	course := f.createCourse(t, prof.ID, "Intro")

	enrollment, err := f.enrollments.Create(ctx, course.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, prof.ID, enrollment.ProfessorID)

	stored, err := f.enrollments.Get(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, prof.ID, stored.ProfessorID)

	_, err = f.enrollments.Create(ctx, course.ID, student.ID)
	assert.ErrorIs(t, err, ErrConflict)

	count, err := f.enrollments.CountForCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	subscribed, err := f.enrollments.ListCoursesForStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, subscribed, 1)
	assert.Equal(t, course.ID, subscribed[0].ID)
	assert.Equal(t, prof.Name, subscribed[0].ProfessorName)

	roster, err := f.courses.ListStudents(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, student.ID, roster[0].ID)
	assert.Equal(t, "s@x.com", roster[0].Email)

	require.NoError(t, f.enrollments.Delete(ctx, student.ID, course.ID))
	assert.ErrorIs(t, f.enrollments.Delete(ctx, student.ID, course.ID), ErrNotFound)

	subscribed, err = f.enrollments.ListCoursesForStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, subscribed)
}

func TestEnrollmentUnknownCourse(t *testing.T) {
	f := newFixture(t)
	student := f.createUser(t, "s@x.com", types.RoleStudent)

	_, err := f.enrollments.Create(context.Background(), 777, student.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCourseDeleteCascadesEnrollments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prof := f.createUser(t, "p@x.com", types.RoleProfessor)
	s1 := f.createUser(t, "s1@x.com", types.RoleStudent)
	s2 := f.createUser(t, "s2@x.com", types.RoleStudent)
	course := f.createCourse(t, prof.ID, "Intro")

	_, err := f.enrollments.Create(ctx, course.ID, s1.ID)
	require.NoError(t, err)
	_, err = f.enrollments.Create(ctx, course.ID, s2.ID)
	require.NoError(t, err)

	removed, err := f.courses.Delete(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var remaining int
	require.NoError(t, f.db.Get(&remaining, `SELECT COUNT(*) FROM course_students`))
	assert.Zero(t, remaining)
}
