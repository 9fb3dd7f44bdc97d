package seed

import (
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Users = 4
	opts.PostsPerUser = 2
	opts.CommentsPerPost = 5
	opts.ReplyPercent = 50
	opts.SkipBcrypt = true
	opts.RandSeed = 42
	return opts
}

func TestRun_PopulatesBlog(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	summary, err := NewSeeder(db, testOptions()).Run()
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Users)
	assert.Equal(t, 8, summary.Posts)

	var users, posts, comments int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	assert.EqualValues(t, 4, users)
	assert.EqualValues(t, 8, posts)
	assert.EqualValues(t, summary.Comments, comments)

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.EqualValues(t, 1, admins)
}

func TestRun_RepliesStayOnTheirPost(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	_, err := NewSeeder(db, testOptions()).Run()
	require.NoError(t, err)

	var mismatched int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM comments c
		JOIN comments p ON p.id = c.parent_id
		WHERE c.post_id <> p.post_id`).Scan(&mismatched).Error)
	assert.Zero(t, mismatched)
}

func TestRun_CleanReplacesData(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	opts := testOptions()

	_, err := NewSeeder(db, opts).Run()
	require.NoError(t, err)
	opts.RandSeed = 7
	_, err = NewSeeder(db, opts).Run()
	require.NoError(t, err)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, opts.Users, users)
}

func TestRun_RequiresUsers(t *testing.T) {
	_, err := NewSeeder(nil, Options{}).Run()
	assert.Error(t, err)
}

func TestFactory_BuildPost(t *testing.T) {
	f := NewFactory(nil, Options{SkipBcrypt: true, MaxDays: 30, RandSeed: 1})
	author := &models.User{ID: "author"}

	for i := 0; i < 20; i++ {
		p := f.BuildPost(author)
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Content)
		assert.Equal(t, "author", p.AuthorID)
		assert.True(t, p.Status.Valid())
		assert.NotEmpty(t, p.Tags)
		assert.LessOrEqual(t, len(p.Tags), 4)
		for _, tag := range p.Tags {
			assert.Contains(t, tagVocabulary, tag)
		}
	}
}

func TestFactory_DryRunSkipsDatabase(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true})

	user, err := f.CreateUser()
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, DefaultPassword, user.Password)

	posts := []*models.Post{f.BuildPost(user), f.BuildPost(user)}
	require.NoError(t, f.CreatePostsBatch(posts))
	assert.NotEmpty(t, posts[0].ID)
	assert.NotEqual(t, posts[0].ID, posts[1].ID)
}
