package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pulsegram/apiserver/internal/logging"
	"github.com/pulsegram/apiserver/types"
)

// PostRepository defines persistence operations for posts and likes.
type PostRepository interface {
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	ListByAuthor(ctx context.Context, authorID int) ([]types.Post, error)
	ListByHashtag(ctx context.Context, name string) ([]types.Post, error)
	Feed(ctx context.Context, page, pageSize int, hashtag string) ([]types.Post, int, error)
	Delete(ctx context.Context, id int) error
	Like(ctx context.Context, postID, userID int) error
	Unlike(ctx context.Context, postID, userID int) error
	Likers(ctx context.Context, postID int) ([]types.User, error)
}

// UserLookup resolves users by username.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
}

// EventPublisher delivers post activity events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event types.PostEvent) error
}

// SocialService composes posts, hashtags and users into the post, like and
// feed use-cases. Results are returned as client-facing projections.
type SocialService struct {
	posts  PostRepository
	users  UserLookup
	events EventPublisher
	logger logging.Logger
	now    func() time.Time
}

// NewSocialService builds the service. events may be nil, in which case no
// activity is published.
func NewSocialService(posts PostRepository, users UserLookup, events EventPublisher, logger logging.Logger) *SocialService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SocialService{
		posts:  posts,
		users:  users,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

func (s *SocialService) CreatePost(ctx context.Context, actorID int, draft types.PostDraft) (types.PostView, error) {
	draft.Image = strings.TrimSpace(draft.Image)
	if draft.Image == "" {
		return types.PostView{}, fmt.Errorf("%w: image is required", types.ErrInvalidInput)
	}

	post, err := s.posts.Create(ctx, types.Post{
		Content:  draft.Content,
		Image:    draft.Image,
		Location: strings.TrimSpace(draft.Location),
		AuthorID: actorID,
	})
	if err != nil {
		return types.PostView{}, err
	}

	s.publish(ctx, types.PostCreated, post.ID, actorID)
	return post.View(), nil
}

func (s *SocialService) MyPosts(ctx context.Context, actorID int) ([]types.PostView, error) {
	posts, err := s.posts.ListByAuthor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return views(posts), nil
}

// UserPosts lists the posts of the named user. It returns ErrNotFound for
// an unknown username.
func (s *SocialService) UserPosts(ctx context.Context, username string) ([]types.PostView, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByAuthor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return views(posts), nil
}

func (s *SocialService) PostsByHashtag(ctx context.Context, name string) ([]types.PostView, error) {
	posts, err := s.posts.ListByHashtag(ctx, strings.TrimPrefix(name, "#"))
	if err != nil {
		return nil, err
	}
	return views(posts), nil
}

func (s *SocialService) Feed(ctx context.Context, page, pageSize int, hashtag string) (types.FeedPage, error) {
	posts, total, err := s.posts.Feed(ctx, page, pageSize, strings.TrimPrefix(hashtag, "#"))
	if err != nil {
		return types.FeedPage{}, err
	}
	return types.FeedPage{
		Items: views(posts),
		Page:  page,
		Limit: pageSize,
		Total: total,
	}, nil
}

func (s *SocialService) GetPost(ctx context.Context, postID int) (types.PostView, error) {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return types.PostView{}, err
	}
	return post.View(), nil
}

// DeletePost removes a post owned by the actor.
func (s *SocialService) DeletePost(ctx context.Context, actorID, postID int) error {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return fmt.Errorf("%w: only the author can delete a post", types.ErrForbidden)
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}

	s.publish(ctx, types.PostDeleted, postID, actorID)
	return nil
}

func (s *SocialService) Like(ctx context.Context, actorID, postID int) error {
	if err := s.posts.Like(ctx, postID, actorID); err != nil {
		return err
	}
	s.publish(ctx, types.PostLiked, postID, actorID)
	return nil
}

func (s *SocialService) Unlike(ctx context.Context, actorID, postID int) error {
	if err := s.posts.Unlike(ctx, postID, actorID); err != nil {
		return err
	}
	s.publish(ctx, types.PostUnliked, postID, actorID)
	return nil
}

func (s *SocialService) Likers(ctx context.Context, postID int) ([]types.UserSummary, error) {
	users, err := s.posts.Likers(ctx, postID)
	if err != nil {
		return nil, err
	}
	summaries := make([]types.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}

// publish is best effort: the mutation has already committed, so a broker
// failure is logged and dropped.
func (s *SocialService) publish(ctx context.Context, eventType types.PostEventType, postID, actorID int) {
	if s.events == nil {
		return
	}
	event := types.PostEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		PostID:     postID,
		ActorID:    actorID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn(ctx, "publish post event failed",
			"type", string(eventType),
			"post_id", postID,
			"error", err,
		)
	}
}

func views(posts []types.Post) []types.PostView {
	out := make([]types.PostView, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.View())
	}
	return out
}
