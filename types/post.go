package types

import "time"

// Post represents a user's post together with the projections the store
// materializes alongside it.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Content is the post text. It may contain hashtag tokens.
	Content string `json:"content" db:"content"`

	// Image is the URL of the attached image. It is required.
	Image string `json:"image" db:"image"`

	// Location is an optional free-form location.
	Location string `json:"location,omitempty" db:"location"`

	// CreatedAt is assigned by the server when the post is stored and
	// drives reverse-chronological ordering.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// LikesCount is maintained incrementally and always equals the number
	// of users who currently like the post.
	LikesCount int `json:"likes_count" db:"likes_count"`

	// AuthorID identifies the user who created the post. It never changes
	// after creation.
	AuthorID int `json:"author_id" db:"author_id"`

	// AuthorUsername is the username of the author, loaded with the post.
	AuthorUsername string `json:"author" db:"author_username"`

	// Hashtags are the names of the linked hashtags, in order of first
	// occurrence in Content.
	Hashtags []string `json:"hashtags" db:"hashtags"`

	// LikedBy are the usernames of the users who like the post.
	LikedBy []string `json:"user_liked" db:"liked_by"`
}

// PostDraft carries the caller-supplied fields of a new post.
type PostDraft struct {
	Content  string `json:"content"`
	Image    string `json:"image"`
	Location string `json:"location,omitempty"`
}

// PostView is the read-shaped projection of a post returned to clients.
// Foreign keys are replaced with human-readable fields.
type PostView struct {
	ID         int       `json:"id"`
	Content    string    `json:"content"`
	Image      string    `json:"image"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LikesCount int       `json:"likes_count"`
	Author     string    `json:"author"`
	Hashtags   []string  `json:"hashtags"`
	UserLiked  []string  `json:"user_liked"`
}

// View projects p into its client-facing shape. List fields are never nil so
// they always serialize as JSON arrays.
func (p Post) View() PostView {
	hashtags := p.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	likedBy := p.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}
	return PostView{
		ID:         p.ID,
		Content:    p.Content,
		Image:      p.Image,
		Location:   p.Location,
		CreatedAt:  p.CreatedAt,
		LikesCount: p.LikesCount,
		Author:     p.AuthorUsername,
		Hashtags:   hashtags,
		UserLiked:  likedBy,
	}
}

// Hashtag is a unique tag name linked from any number of posts.
type Hashtag struct {
	// ID is the unique identifier of the hashtag.
	ID int `json:"id" db:"id"`

	// Name is the case-sensitive tag text without the leading '#'.
	Name string `json:"name" db:"name"`
}

// FeedPage is one page of the global reverse-chronological feed.
type FeedPage struct {
	Items []PostView `json:"items"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Total int        `json:"total"`
}

// LikeDrift reports a post whose stored like counter disagrees with the
// number of like edges recorded for it.
type LikeDrift struct {
	PostID int `json:"post_id"`
	Stored int `json:"stored"`
	Actual int `json:"actual"`
}
