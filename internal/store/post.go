package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pulsegram/apiserver/internal/db"
	"github.com/pulsegram/apiserver/types"
)

// postSelect loads a post with its author username, its hashtag names in
// first-occurrence order, and the usernames of its likers.
const postSelect = `
		SELECT p.id, p.content, p.image, COALESCE(p.location, ''), p.created_at, p.likes_count,
			p.author_id, u.username,
			COALESCE((SELECT array_agg(h.name ORDER BY ph.position)
				FROM post_hashtags ph JOIN hashtags h ON h.id = ph.hashtag_id
				WHERE ph.post_id = p.id), '{}') AS hashtags,
			COALESCE((SELECT array_agg(lu.username ORDER BY lu.username)
				FROM post_likes pl JOIN users lu ON lu.id = pl.user_id
				WHERE pl.post_id = p.id), '{}') AS liked_by
		FROM posts p
		JOIN users u ON u.id = p.author_id`

const postOrder = `
		ORDER BY p.created_at DESC, p.id DESC`

// hashtagFilter matches every post when $1 is empty, otherwise only posts
// linked to the hashtag named $1.
const hashtagFilter = `
		WHERE ($1 = '' OR EXISTS (
			SELECT 1 FROM post_hashtags fph JOIN hashtags fh ON fh.id = fph.hashtag_id
			WHERE fph.post_id = p.id AND fh.name = $1))`

// PostRepository handles persistence for posts, their hashtag links and
// their like edges.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create stores a post, resolving and linking its hashtags in the same
// transaction. CreatedAt is assigned by the database and LikesCount starts
// at zero.
func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	if post.Image == "" {
		return types.Post{}, fmt.Errorf("%w: image is required", types.ErrInvalidInput)
	}
	if post.AuthorID <= 0 {
		return types.Post{}, fmt.Errorf("%w: author is required", types.ErrInvalidInput)
	}

	var id int
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		tags, err := NewHashtagIndex(tx).ExtractAndLink(ctx, post.Content)
		if err != nil {
			return fmt.Errorf("resolve hashtags: %w", err)
		}

		const insertPost = `
			INSERT INTO posts (content, image, location, author_id, likes_count)
			VALUES ($1, $2, $3, $4, 0)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insertPost,
			post.Content,
			post.Image,
			nullString(post.Location),
			post.AuthorID,
		).Scan(&id); err != nil {
			return mapConstraintError(err)
		}

		const linkTag = `
			INSERT INTO post_hashtags (post_id, hashtag_id, position)
			VALUES ($1, $2, $3)`
		for i, tag := range tags {
			if _, err := tx.ExecContext(ctx, linkTag, id, tag.ID, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.Post{}, err
	}

	return r.Get(ctx, id)
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	query := postSelect + `
		WHERE p.id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

// ListByAuthor returns the author's posts, most recent first.
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID int) ([]types.Post, error) {
	query := postSelect + `
		WHERE p.author_id = $1` + postOrder
	return r.queryPosts(ctx, query, authorID)
}

// ListByHashtag returns the posts linked to the named hashtag, most recent
// first. It returns ErrNotFound when no hashtag has that name, and an empty
// slice when the hashtag exists but no post links to it.
func (r *PostRepository) ListByHashtag(ctx context.Context, name string) ([]types.Post, error) {
	tag, err := NewHashtagIndex(r.db).GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	query := postSelect + `
		WHERE EXISTS (
			SELECT 1 FROM post_hashtags fph
			WHERE fph.post_id = p.id AND fph.hashtag_id = $1)` + postOrder
	return r.queryPosts(ctx, query, tag.ID)
}

// Feed returns one page of the global reverse-chronological order together
// with the number of posts matching the filter. An empty hashtag disables
// the filter. A page past the end is empty, not an error.
func (r *PostRepository) Feed(ctx context.Context, page, pageSize int, hashtag string) ([]types.Post, int, error) {
	if page < 1 {
		return nil, 0, fmt.Errorf("%w: page must be at least 1", types.ErrInvalidInput)
	}
	if pageSize < 1 {
		return nil, 0, fmt.Errorf("%w: page size must be at least 1", types.ErrInvalidInput)
	}

	countQuery := `
		SELECT COUNT(*)
		FROM posts p` + hashtagFilter
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, hashtag).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Compare page numbers rather than offsets so a huge page cannot
	// overflow into a negative OFFSET.
	if total == 0 || page-1 >= (total+pageSize-1)/pageSize {
		return []types.Post{}, total, nil
	}
	offset := (page - 1) * pageSize

	query := postSelect + hashtagFilter + postOrder + `
		LIMIT $2 OFFSET $3`
	posts, err := r.queryPosts(ctx, query, hashtag, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Delete removes the post, its like edges and its hashtag links in one
// transaction. Hashtag rows are kept even when no post links to them.
func (r *PostRepository) Delete(ctx context.Context, id int) error {
	return db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM post_hashtags WHERE post_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Like records that userID likes postID and increments the post's counter
// in the same transaction. The post row is locked first so concurrent
// likes on one post serialize.
func (r *PostRepository) Like(ctx context.Context, postID, userID int) error {
	return db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := lockPost(ctx, tx, postID); err != nil {
			return err
		}

		const insertEdge = `
			INSERT INTO post_likes (user_id, post_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, post_id) DO NOTHING`
		result, err := tx.ExecContext(ctx, insertEdge, userID, postID)
		if err != nil {
			return mapConstraintError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: post already liked", ErrConflict)
		}

		return adjustLikes(ctx, tx, postID, 1)
	})
}

// Unlike removes the like edge and decrements the post's counter in the
// same transaction. It returns ErrNotFound when the edge does not exist.
func (r *PostRepository) Unlike(ctx context.Context, postID, userID int) error {
	return db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := lockPost(ctx, tx, postID); err != nil {
			return err
		}

		const deleteEdge = `
			DELETE FROM post_likes
			WHERE user_id = $1 AND post_id = $2`
		result, err := tx.ExecContext(ctx, deleteEdge, userID, postID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: post not liked", ErrNotFound)
		}

		return adjustLikes(ctx, tx, postID, -1)
	})
}

// Likers returns the users who like the post, ordered by username.
func (r *PostRepository) Likers(ctx context.Context, postID int) ([]types.User, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	const query = `
		SELECT u.id, u.username, u.name, COALESCE(u.profile_pic, '')
		FROM post_likes pl
		JOIN users u ON u.id = pl.user_id
		WHERE pl.post_id = $1
		ORDER BY u.username`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.ProfilePic); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// VerifyLikes lists the posts whose stored counter differs from the number
// of like edges recorded for them.
func (r *PostRepository) VerifyLikes(ctx context.Context) ([]types.LikeDrift, error) {
	const query = `
		SELECT p.id, p.likes_count, COUNT(pl.user_id)
		FROM posts p
		LEFT JOIN post_likes pl ON pl.post_id = p.id
		GROUP BY p.id, p.likes_count
		HAVING p.likes_count <> COUNT(pl.user_id)
		ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drifts := []types.LikeDrift{}
	for rows.Next() {
		var d types.LikeDrift
		if err := rows.Scan(&d.PostID, &d.Stored, &d.Actual); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drifts, nil
}

// ReconcileLikes rewrites drifting counters from the edge set and reports
// how many posts were repaired.
func (r *PostRepository) ReconcileLikes(ctx context.Context) (int, error) {
	const query = `
		UPDATE posts p
		SET likes_count = c.actual
		FROM (
			SELECT p2.id, COUNT(pl.user_id) AS actual
			FROM posts p2
			LEFT JOIN post_likes pl ON pl.post_id = p2.id
			GROUP BY p2.id
		) c
		WHERE p.id = c.id AND p.likes_count <> c.actual`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *PostRepository) queryPosts(ctx context.Context, query string, args ...any) ([]types.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []types.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func scanPost(row rowScanner) (types.Post, error) {
	var (
		post     types.Post
		hashtags pq.StringArray
		likedBy  pq.StringArray
	)
	err := row.Scan(
		&post.ID,
		&post.Content,
		&post.Image,
		&post.Location,
		&post.CreatedAt,
		&post.LikesCount,
		&post.AuthorID,
		&post.AuthorUsername,
		&hashtags,
		&likedBy,
	)
	if err != nil {
		return types.Post{}, err
	}
	post.Hashtags = []string(hashtags)
	post.LikedBy = []string(likedBy)
	return post, nil
}

func lockPost(ctx context.Context, tx db.DBTX, postID int) error {
	var id int
	err := tx.QueryRowContext(ctx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// adjustLikes applies delta to the stored counter in place, so the update
// never depends on a value read earlier.
func adjustLikes(ctx context.Context, tx db.DBTX, postID, delta int) error {
	const query = `
		UPDATE posts
		SET likes_count = likes_count + $1
		WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, delta, postID)
	return err
}
