package types

import "time"

// PostEventType names a state change on a post.
type PostEventType string

// Activity event types published after a mutation commits.
const (
	PostCreated PostEventType = "post.created"
	PostDeleted PostEventType = "post.deleted"
	PostLiked   PostEventType = "post.liked"
	PostUnliked PostEventType = "post.unliked"
)

// PostEvent is the payload published to the activity channel.
type PostEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the kind of change that happened.
	Type PostEventType `json:"type"`

	// PostID is the post the change applies to.
	PostID int `json:"post_id"`

	// ActorID is the user who performed the change.
	ActorID int `json:"actor_id"`

	// OccurredAt is when the change was committed.
	OccurredAt time.Time `json:"occurred_at"`
}
