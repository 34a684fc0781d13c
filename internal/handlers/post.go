package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pulsegram/apiserver/internal/logging"
	"github.com/pulsegram/apiserver/types"
)

// SocialService is the post, like and feed use-case surface.
type SocialService interface {
	CreatePost(ctx context.Context, actorID int, draft types.PostDraft) (types.PostView, error)
	MyPosts(ctx context.Context, actorID int) ([]types.PostView, error)
	UserPosts(ctx context.Context, username string) ([]types.PostView, error)
	PostsByHashtag(ctx context.Context, name string) ([]types.PostView, error)
	Feed(ctx context.Context, page, pageSize int, hashtag string) (types.FeedPage, error)
	GetPost(ctx context.Context, postID int) (types.PostView, error)
	DeletePost(ctx context.Context, actorID, postID int) error
	Like(ctx context.Context, actorID, postID int) error
	Unlike(ctx context.Context, actorID, postID int) error
	Likers(ctx context.Context, postID int) ([]types.UserSummary, error)
}

// PostHandler provides HTTP handlers for posts, likes and the feed.
type PostHandler struct {
	social SocialService
	logger logging.Logger
}

func NewPostHandler(social SocialService, logger logging.Logger) *PostHandler {
	return &PostHandler{social: social, logger: logger}
}

// PostRouter registers post routes on the given router. Listings by user,
// by hashtag and the feed are public; everything else needs a token.
func PostRouter(r chi.Router, social SocialService, logger logging.Logger, authMiddleware func(http.Handler) http.Handler) {
	handler := NewPostHandler(social, logger)

	r.Get("/feed", handler.Feed)
	r.Get("/user/{username}", handler.UserPosts)
	r.Get("/hashtag/{hashtag}", handler.PostsByHashtag)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", handler.CreatePost)
		r.Get("/", handler.MyPosts)
		r.Route("/{postID}", func(r chi.Router) {
			r.Get("/", handler.GetPost)
			r.Delete("/", handler.DeletePost)
			r.Post("/like", handler.Like)
			r.Delete("/like", handler.Unlike)
			r.Get("/likers", handler.Likers)
		})
	})
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	post, err := h.social.CreatePost(r.Context(), userID, types.PostDraft{
		Content:  req.Content,
		Image:    req.Image,
		Location: req.Location,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) MyPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	posts, err := h.social.MyPosts(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) UserPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.social.UserPosts(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) PostsByHashtag(w http.ResponseWriter, r *http.Request) {
	posts, err := h.social.PostsByHashtag(r.Context(), chi.URLParam(r, "hashtag"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// Feed serves one page of the global feed. Query: page, limit, hashtag.
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feed, err := h.social.Feed(r.Context(), page, limit, strings.TrimSpace(r.URL.Query().Get("hashtag")))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.social.GetPost(r.Context(), postID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.social.DeletePost)
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.social.Like)
}

func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.social.Unlike)
}

func (h *PostHandler) Likers(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.social.Likers(r.Context(), postID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// mutate runs an actor-and-post operation and answers 204 on success.
func (h *PostHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, postID int) error) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	postID, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(r.Context(), userID, postID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) caller(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return userID, true
}

type CreatePostRequest struct {
	Content  string `json:"content"`
	Image    string `json:"image"`
	Location string `json:"location,omitempty"`
}
