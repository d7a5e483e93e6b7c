package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/nikpetrovv/blog_service/internal/cache"
	"github.com/nikpetrovv/blog_service/internal/logging"
	"github.com/nikpetrovv/blog_service/internal/models"
	"github.com/nikpetrovv/blog_service/internal/mykafka"
	"github.com/nikpetrovv/blog_service/internal/search"
)

var ErrPostNotFound = errors.New("post not found")

// PostService serves the post CRUD with a write-through Redis cache keyed
// "post<id>" and mirrors new posts into the search index.
type PostService struct {
	DB       *gorm.DB
	Cache    *redis.Client
	Indexer  *search.Indexer
	Producer *mykafka.Producer
}

func postKey(id uint) string { return fmt.Sprintf("post%d", id) }

func (s *PostService) publish(ctx context.Context, key string, event map[string]any) {
	if s.Producer == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Producer.PublishEvent(pubCtx, "post_events", key, event); err != nil {
		logging.FromContext(ctx).Error("kafka publish error", "error", err)
	}
}

func (s *PostService) Create(ctx context.Context, title, description, author string) (*models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "post.create", "author", author)

	post := models.Post{Title: title, Description: description, Author: author}
	if err := s.DB.WithContext(ctx).Create(&post).Error; err != nil {
		l.Error("create failed", "error", err)
		return nil, fmt.Errorf("db error: %w", err)
	}

	if data, err := json.Marshal(post); err == nil {
		if err := s.Cache.Set(ctx, postKey(post.ID), data, cache.DefaultExpire).Err(); err != nil {
			l.Warn("cache set failed", "error", err)
		}
	}

	if s.Indexer != nil {
		if err := s.Indexer.IndexPost(ctx, &post); err != nil {
			l.Warn("index failed", "error", err)
		}
	}

	s.publish(ctx, author, map[string]any{
		"type":    "post_created",
		"post_id": post.ID,
		"author":  author,
	})

	return &post, nil
}

func (s *PostService) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "post.get", "post_id", id)

	if data, err := s.Cache.Get(ctx, postKey(id)).Bytes(); err == nil {
		var post models.Post
		if err := json.Unmarshal(data, &post); err == nil {
			l.Debug("post served from cache")
			return &post, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		l.Warn("cache get failed", "error", err)
	}

	var post models.Post
	if err := s.DB.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if data, err := json.Marshal(post); err == nil {
		if err := s.Cache.Set(ctx, postKey(post.ID), data, cache.DefaultExpire).Err(); err != nil {
			l.Warn("cache set failed", "error", err)
		}
	}
	return &post, nil
}

// List serves the post list from the generic cache when the write-through
// entries are present, falling back to the DB otherwise. The cache scan can
// return fewer posts than the table holds when some entries have expired;
// that mirrors the write-through policy, entries refill on detail reads.
func (s *PostService) List(ctx context.Context) ([]models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "post.list")

	if posts, err := s.listFromCache(ctx); err != nil {
		l.Warn("cache scan failed", "error", err)
	} else if len(posts) > 0 {
		l.Debug("post list served from cache")
		return posts, nil
	}

	var posts []models.Post
	if err := s.DB.WithContext(ctx).Order("created_at, id").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return posts, nil
}

func (s *PostService) listFromCache(ctx context.Context) ([]models.Post, error) {
	keys, err := s.Cache.Keys(ctx, "post*").Result()
	if err != nil {
		return nil, fmt.Errorf("cache keys: %w", err)
	}

	posts := make([]models.Post, 0, len(keys))
	for _, key := range keys {
		data, err := s.Cache.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("cache get: %w", err)
		}
		var post models.Post
		if err := json.Unmarshal(data, &post); err != nil {
			continue
		}
		posts = append(posts, post)
	}

	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	return posts, nil
}
