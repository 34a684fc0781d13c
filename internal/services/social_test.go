package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pulsegram/apiserver/types"
	"github.com/stretchr/testify/require"
)

type socialFixture struct {
	users  *fakeUsers
	posts  *fakePosts
	events *fakeEvents
	svc    *SocialService
	alice  types.User
	bob    types.User
}

func newSocialFixture(t *testing.T) *socialFixture {
	t.Helper()
	users := newFakeUsers(
		types.User{Username: "alice", Email: "alice@example.com", Name: "Alice"},
		types.User{Username: "bob", Email: "bob@example.com", Name: "Bob"},
	)
	posts := newFakePosts(users)
	events := &fakeEvents{}
	alice, err := users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	bob, err := users.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	return &socialFixture{
		users:  users,
		posts:  posts,
		events: events,
		svc:    NewSocialService(posts, users, events, nil),
		alice:  alice,
		bob:    bob,
	}
}

func TestSocialService_CreatePost(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{
		Content: "hello #world #world again",
		Image:   " http://img/1.png ",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", view.Author)
	require.Equal(t, "http://img/1.png", view.Image)
	require.Equal(t, []string{"world"}, view.Hashtags)
	require.Equal(t, []string{}, view.UserLiked)
	require.Equal(t, 0, view.LikesCount)
	require.Equal(t, []types.PostEventType{types.PostCreated}, f.events.kinds())
}

func TestSocialService_CreatePost_RequiresImage(t *testing.T) {
	f := newSocialFixture(t)

	_, err := f.svc.CreatePost(context.Background(), f.alice.ID, types.PostDraft{Content: "x", Image: "  "})
	require.ErrorIs(t, err, types.ErrInvalidInput)
	require.Empty(t, f.events.kinds())
}

func TestSocialService_LikeUnlikeScenario(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Image: "i"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Like(ctx, f.alice.ID, post.ID))
	got, err := f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.LikesCount)

	require.NoError(t, f.svc.Like(ctx, f.bob.ID, post.ID))
	got, err = f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.LikesCount)

	require.NoError(t, f.svc.Unlike(ctx, f.alice.ID, post.ID))
	got, err = f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.LikesCount)
	require.Equal(t, []string{"bob"}, got.UserLiked)

	likers, err := f.svc.Likers(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, []types.UserSummary{f.bob.Summary()}, likers)

	require.Equal(t, []types.PostEventType{
		types.PostCreated, types.PostLiked, types.PostLiked, types.PostUnliked,
	}, f.events.kinds())
}

func TestSocialService_LikeTwiceConflicts(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Image: "i"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Like(ctx, f.bob.ID, post.ID))

	err = f.svc.Like(ctx, f.bob.ID, post.ID)
	require.ErrorIs(t, err, types.ErrConflict)

	got, err := f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.LikesCount)
}

func TestSocialService_UnlikeWithoutLike(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Image: "i"})
	require.NoError(t, err)

	err = f.svc.Unlike(ctx, f.bob.ID, post.ID)
	require.ErrorIs(t, err, types.ErrNotFound)

	got, err := f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.LikesCount)
}

func TestSocialService_ConcurrentLikesKeepCount(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Image: "i"})
	require.NoError(t, err)

	const n = 20
	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		u, err := f.users.Create(ctx, types.User{Username: fmt.Sprintf("user%02d", i)})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_ = f.svc.Like(ctx, id, post.ID)
		}(id)
	}
	wg.Wait()

	got, err := f.svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, n, got.LikesCount)
	require.Len(t, got.UserLiked, n)
}

func TestSocialService_DeletePost(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	post, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Content: "#sun", Image: "i"})
	require.NoError(t, err)

	err = f.svc.DeletePost(ctx, f.bob.ID, post.ID)
	require.ErrorIs(t, err, types.ErrForbidden)

	require.NoError(t, f.svc.DeletePost(ctx, f.alice.ID, post.ID))

	mine, err := f.svc.MyPosts(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Empty(t, mine)

	tagged, err := f.svc.PostsByHashtag(ctx, "sun")
	require.NoError(t, err, "hashtag survives the delete")
	require.Empty(t, tagged)

	err = f.svc.DeletePost(ctx, f.alice.ID, post.ID)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestSocialService_PostsByHashtag(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Content: "#go rocks", Image: "i"})
	require.NoError(t, err)

	posts, err := f.svc.PostsByHashtag(ctx, "#go")
	require.NoError(t, err)
	require.Len(t, posts, 1)

	_, err = f.svc.PostsByHashtag(ctx, "nonexistent")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestSocialService_UserPosts(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreatePost(ctx, f.bob.ID, types.PostDraft{Image: "1"})
	require.NoError(t, err)
	second, err := f.svc.CreatePost(ctx, f.bob.ID, types.PostDraft{Image: "2"})
	require.NoError(t, err)

	posts, err := f.svc.UserPosts(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, second.ID, posts[0].ID)
	require.Equal(t, first.ID, posts[1].ID)

	_, err = f.svc.UserPosts(ctx, "nobody")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestSocialService_FeedPagination(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Image: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	first, err := f.svc.Feed(ctx, 1, 10, "")
	require.NoError(t, err)
	second, err := f.svc.Feed(ctx, 2, 10, "")
	require.NoError(t, err)
	beyond, err := f.svc.Feed(ctx, 3, 10, "")
	require.NoError(t, err)

	require.Equal(t, 15, first.Total)
	require.Len(t, first.Items, 10)
	require.Len(t, second.Items, 5)
	require.Empty(t, beyond.Items)
	require.NotNil(t, beyond.Items)

	seen := map[int]bool{}
	prev := first.Items[0].CreatedAt
	for _, p := range append(first.Items, second.Items...) {
		require.False(t, seen[p.ID], "pages overlap at post %d", p.ID)
		seen[p.ID] = true
		require.False(t, p.CreatedAt.After(prev), "feed not reverse chronological")
		prev = p.CreatedAt
	}
	require.Len(t, seen, 15)
}

func TestSocialService_FeedHashtagFilter(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Content: "#a", Image: "1"})
	require.NoError(t, err)
	_, err = f.svc.CreatePost(ctx, f.alice.ID, types.PostDraft{Content: "#b", Image: "2"})
	require.NoError(t, err)

	page, err := f.svc.Feed(ctx, 1, 5, "#a")
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, []string{"a"}, page.Items[0].Hashtags)
}

func TestSocialService_PublishFailureIsNotSurfaced(t *testing.T) {
	f := newSocialFixture(t)
	f.events.err = errBrokerDown

	_, err := f.svc.CreatePost(context.Background(), f.alice.ID, types.PostDraft{Image: "i"})
	require.NoError(t, err)
}

func TestSocialService_NilPublisher(t *testing.T) {
	f := newSocialFixture(t)
	svc := NewSocialService(f.posts, f.users, nil, nil)

	post, err := svc.CreatePost(context.Background(), f.alice.ID, types.PostDraft{Image: "i"})
	require.NoError(t, err)
	require.NoError(t, svc.Like(context.Background(), f.bob.ID, post.ID))
}
