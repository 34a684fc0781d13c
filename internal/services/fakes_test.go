package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/pulsegram/apiserver/internal/hashtag"
	"github.com/pulsegram/apiserver/types"
)

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[int]types.User
	nextID int
	getErr error
}

func newFakeUsers(users ...types.User) *fakeUsers {
	f := &fakeUsers{byID: map[int]types.User{}}
	for _, u := range users {
		f.nextID++
		if u.ID == 0 {
			u.ID = f.nextID
		}
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return types.User{}, types.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return types.User{}, f.getErr
	}
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, types.ErrNotFound
}

func (f *fakeUsers) GetByUsernameOrEmail(ctx context.Context, login string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == login || u.Email == login {
			return u, nil
		}
	}
	return types.User{}, types.ErrNotFound
}

func (f *fakeUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Update(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return types.User{}, types.ErrNotFound
	}
	f.byID[user.ID] = user
	return user, nil
}

// fakePosts keeps posts, tag links and like edges in memory and enforces
// the same outcomes as the postgres repository.
type fakePosts struct {
	mu     sync.Mutex
	users  *fakeUsers
	posts  map[int]types.Post
	tags   map[string]int
	likes  map[int]map[int]struct{}
	nextID int
	clock  time.Time
}

func newFakePosts(users *fakeUsers) *fakePosts {
	return &fakePosts{
		users: users,
		posts: map[int]types.Post{},
		tags:  map[string]int{},
		likes: map[int]map[int]struct{}{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakePosts) Create(ctx context.Context, post types.Post) (types.Post, error) {
	if _, err := f.users.GetByID(ctx, post.AuthorID); err != nil {
		return types.Post{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	post.ID = f.nextID
	post.CreatedAt = f.clock
	post.Hashtags = hashtag.Extract(post.Content)
	for _, name := range post.Hashtags {
		if _, ok := f.tags[name]; !ok {
			f.tags[name] = len(f.tags) + 1
		}
	}
	f.posts[post.ID] = post
	f.likes[post.ID] = map[int]struct{}{}
	return f.project(post), nil
}

func (f *fakePosts) Get(ctx context.Context, id int) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return types.Post{}, types.ErrNotFound
	}
	return f.project(p), nil
}

func (f *fakePosts) ListByAuthor(ctx context.Context, authorID int) ([]types.Post, error) {
	return f.filter(func(p types.Post) bool { return p.AuthorID == authorID }), nil
}

func (f *fakePosts) ListByHashtag(ctx context.Context, name string) ([]types.Post, error) {
	f.mu.Lock()
	_, ok := f.tags[name]
	f.mu.Unlock()
	if !ok {
		return nil, types.ErrNotFound
	}
	return f.filter(func(p types.Post) bool { return contains(p.Hashtags, name) }), nil
}

func (f *fakePosts) Feed(ctx context.Context, page, pageSize int, tag string) ([]types.Post, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, types.ErrInvalidInput
	}
	all := f.filter(func(p types.Post) bool { return tag == "" || contains(p.Hashtags, tag) })
	offset := (page - 1) * pageSize
	if offset >= len(all) {
		return []types.Post{}, len(all), nil
	}
	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (f *fakePosts) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return types.ErrNotFound
	}
	delete(f.posts, id)
	delete(f.likes, id)
	return nil
}

func (f *fakePosts) Like(ctx context.Context, postID, userID int) error {
	if _, err := f.users.GetByID(ctx, userID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return types.ErrNotFound
	}
	if _, liked := f.likes[postID][userID]; liked {
		return types.ErrConflict
	}
	f.likes[postID][userID] = struct{}{}
	p.LikesCount++
	f.posts[postID] = p
	return nil
}

func (f *fakePosts) Unlike(ctx context.Context, postID, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return types.ErrNotFound
	}
	if _, liked := f.likes[postID][userID]; !liked {
		return types.ErrNotFound
	}
	delete(f.likes[postID], userID)
	p.LikesCount--
	f.posts[postID] = p
	return nil
}

func (f *fakePosts) Likers(ctx context.Context, postID int) ([]types.User, error) {
	f.mu.Lock()
	edges, ok := f.likes[postID]
	ids := make([]int, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	if !ok {
		return nil, types.ErrNotFound
	}
	users := make([]types.User, 0, len(ids))
	for _, id := range ids {
		u, err := f.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (f *fakePosts) filter(keep func(types.Post) bool) []types.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Post{}
	for _, p := range f.posts {
		if keep(p) {
			out = append(out, f.project(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// project fills the author and liker usernames. Callers hold f.mu.
func (f *fakePosts) project(p types.Post) types.Post {
	author, _ := f.users.GetByID(context.Background(), p.AuthorID)
	p.AuthorUsername = author.Username
	p.LikedBy = []string{}
	for id := range f.likes[p.ID] {
		u, _ := f.users.GetByID(context.Background(), id)
		p.LikedBy = append(p.LikedBy, u.Username)
	}
	sort.Strings(p.LikedBy)
	return p
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeEvents struct {
	mu     sync.Mutex
	events []types.PostEvent
	err    error
}

func (f *fakeEvents) Publish(ctx context.Context, event types.PostEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) kinds() []types.PostEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.PostEventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeTokens struct {
	err error
}

func (f fakeTokens) Issue(userID int, username string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-" + username, nil
}

var errBrokerDown = errors.New("broker down")
