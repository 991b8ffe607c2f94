package services

import (
	"context"
	"testing"

	"github.com/mlearn/apiserver/internal/mq"
	"github.com/mlearn/apiserver/internal/storage"
	"github.com/mlearn/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCourse() CourseInput {
	return CourseInput{Title: "Intro", Description: "desc", Category: "Coding", Location: "Online", Duration: 10}
}

func TestCreateCourseValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	prof := e.register(t, "p@x.com", types.RoleProfessor)
	student := e.register(t, "s@x.com", types.RoleStudent)

	missing := validCourse()
	missing.Location = "  "
	_, err := e.courses.Create(ctx, prof.ID, missing, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "location", verr.Field)

	zero := validCourse()
	zero.Duration = 0
	_, err = e.courses.Create(ctx, prof.ID, zero, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.courses.Create(ctx, student.ID, validCourse(), nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "professor_id", verr.Field)

	_, err = e.courses.Create(ctx, 999, validCourse(), nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.courses.Create(ctx, 0, validCourse(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateCourseWithImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	prof := e.register(t, "p@x.com", types.RoleProfessor)

	course, err := e.courses.Create(ctx, prof.ID, validCourse(), &storage.Upload{Filename: "c.png", Data: pngBytes})
	require.NoError(t, err)
	require.NotNil(t, course.Image)
	assert.Contains(t, *course.Image, "/uploads/courses/")
	assert.Equal(t, prof.Name, course.ProfessorName)

	got, err := e.courses.Get(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, *course.Image, *got.Image)

	without, err := e.courses.Create(ctx, prof.ID, validCourse(), nil)
	require.NoError(t, err)
	assert.Nil(t, without.Image)
}

func TestUpdateCourse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	prof := e.register(t, "p@x.com", types.RoleProfessor)
	course, err := e.courses.Create(ctx, prof.ID, validCourse(), &storage.Upload{Filename: "c.png", Data: pngBytes})
	require.NoError(t, err)

	in := validCourse()
	in.Title = "Advanced"
	in.Duration = 20
	updated, err := e.courses.Update(ctx, course.ID, in, nil)
	require.NoError(t, err)
	assert.Equal(t, "Advanced", updated.Title)
	assert.Equal(t, 20, updated.Duration)
	assert.Equal(t, *course.Image, *updated.Image)

	replaced, err := e.courses.Update(ctx, course.ID, in, &storage.Upload{Filename: "d.png", Data: pngBytes})
	require.NoError(t, err)
	assert.NotEqual(t, *course.Image, *replaced.Image)
	assert.Len(t, e.objects.Keys(), 1)

	_, err = e.courses.Update(ctx, 4242, in, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	in.Title = ""
	_, err = e.courses.Update(ctx, course.ID, in, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteCourseCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	prof := e.register(t, "p@x.com", types.RoleProfessor)
	s1 := e.register(t, "s1@x.com", types.RoleStudent)
	s2 := e.register(t, "s2@x.com", types.RoleStudent)
	course, err := e.courses.Create(ctx, prof.ID, validCourse(), &storage.Upload{Filename: "c.png", Data: pngBytes})
	require.NoError(t, err)

	_, err = e.enrollments.Subscribe(ctx, course.ID, s1.ID)
	require.NoError(t, err)
	_, err = e.enrollments.Subscribe(ctx, course.ID, s2.ID)
	require.NoError(t, err)

	require.NoError(t, e.courses.Delete(ctx, course.ID))

	_, err = e.courses.Get(ctx, course.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, e.objects.Keys())

	subscribed, err := e.enrollments.ListSubscribed(ctx, s1.ID)
	require.NoError(t, err)
	assert.Empty(t, subscribed)

	assert.Equal(t, 2, e.recorder.counts["cascade"])
	assert.Equal(t, []mq.EventType{
		mq.EventEnrollmentCreated,
		mq.EventEnrollmentCreated,
		mq.EventCourseDeleted,
	}, e.events.eventTypes())
	assert.Equal(t, 2, e.events.events[2].Removed)

	assert.ErrorIs(t, e.courses.Delete(ctx, course.ID), ErrNotFound)
}

func TestListByProfessorEmpty(t *testing.T) {
	e := newEnv(t)
	prof := e.register(t, "p@x.com", types.RoleProfessor)

	courses, err := e.courses.ListByProfessor(context.Background(), prof.ID)
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)
}

func TestListAllIncludesProfessorName(t *testing.T) {
	e := newEnv(t)
	a := e.register(t, "a@x.com", types.RoleProfessor)
	b := e.register(t, "b@x.com", types.RoleProfessor)
	e.createCourse(t, a.ID, "One")
	e.createCourse(t, b.ID, "Two")

	courses, err := e.courses.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, a.Name, courses[0].ProfessorName)
	assert.Equal(t, b.Name, courses[1].ProfessorName)
}

func TestListStudents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	prof := e.register(t, "p@x.com", types.RoleProfessor)
	student := e.register(t, "s@x.com", types.RoleStudent)
	course := e.createCourse(t, prof.ID, "Intro")

	_, err := e.enrollments.Subscribe(ctx, course.ID, student.ID)
	require.NoError(t, err)

	roster, err := e.courses.ListStudents(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, student.ID, roster[0].ID)
	assert.Equal(t, "s@x.com", roster[0].Email)
	assert.Equal(t, student.Name, roster[0].Name)

	_, err = e.courses.ListStudents(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequireOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.register(t, "p@x.com", types.RoleProfessor)
	other := e.register(t, "q@x.com", types.RoleProfessor)
	student := e.register(t, "s@x.com", types.RoleStudent)
	course := e.createCourse(t, owner.ID, "Intro")

	_, err := e.courses.RequireOwner(ctx, types.Session{UserID: owner.ID, Role: types.RoleProfessor}, course.ID)
	assert.NoError(t, err)

	_, err = e.courses.RequireOwner(ctx, types.Session{UserID: other.ID, Role: types.RoleProfessor}, course.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.courses.RequireOwner(ctx, types.Session{UserID: owner.ID, Role: types.RoleStudent}, course.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.courses.RequireOwner(ctx, types.Session{UserID: student.ID, Role: types.RoleStudent}, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateCourseRejectsNonImage(t *testing.T) {
	e := newEnv(t)
	prof := e.register(t, "p@x.com", types.RoleProfessor)

	_, err := e.courses.Create(context.Background(), prof.ID, validCourse(), &storage.Upload{Filename: "c.svg", Data: []byte("<svg/>")})
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "course_image", verr.Field)
	assert.Empty(t, e.objects.Keys())
}
