package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodgram-app/backend/internal/models"
)

// SubscriptionService manages who follows whose recipes.
type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// Subscribe makes follower follow author. Self-subscriptions are
// rejected; duplicates surface as ErrAlreadyExists.
func (s *SubscriptionService) Subscribe(ctx context.Context, followerID, authorID uuid.UUID) error {
	if followerID == authorID {
		return newValidationError("author", "cannot subscribe to yourself")
	}

	var author models.User
	if err := s.db.WithContext(ctx).First(&author, "id = ?", authorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	sub := models.Subscription{FollowerID: followerID, AuthorID: authorID}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Unsubscribe removes the subscription; ErrNotFound if there was none.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, followerID, authorID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("follower_id = ? AND author_id = ?", followerID, authorID).
		Delete(&models.Subscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsSubscribed reports whether follower follows author. Anonymous
// callers pass a nil follower and always get false.
func (s *SubscriptionService) IsSubscribed(ctx context.Context, followerID *uuid.UUID, authorID uuid.UUID) (bool, error) {
	if followerID == nil {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("follower_id = ? AND author_id = ?", *followerID, authorID).
		Count(&count).Error
	return count > 0, err
}

// SubscribedSet reports which of the given authors the follower
// follows, in one query. A nil follower yields an empty set.
func (s *SubscriptionService) SubscribedSet(ctx context.Context, followerID *uuid.UUID, authorIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	set := make(map[uuid.UUID]bool, len(authorIDs))
	if followerID == nil || len(authorIDs) == 0 {
		return set, nil
	}
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("follower_id = ? AND author_id IN ?", *followerID, authorIDs).
		Pluck("author_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// SubscribedAuthor is a followed user with a preview of their recipes.
type SubscribedAuthor struct {
	User         models.User
	Recipes      []models.Recipe
	RecipesCount int64
}

// ListSubscriptions returns the authors the user follows, ordered by
// username, each with up to recipesLimit of their newest recipes
// (recipesLimit <= 0 means no limit).
func (s *SubscriptionService) ListSubscriptions(ctx context.Context, followerID uuid.UUID, recipesLimit int) ([]SubscribedAuthor, error) {
	var authors []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN subscriptions ON subscriptions.author_id = users.id").
		Where("subscriptions.follower_id = ?", followerID).
		Order("users.username").
		Find(&authors).Error
	if err != nil {
		return nil, err
	}

	result := make([]SubscribedAuthor, 0, len(authors))
	for _, author := range authors {
		entry := SubscribedAuthor{User: author}

		if err := s.db.WithContext(ctx).Model(&models.Recipe{}).
			Where("author_id = ?", author.ID).
			Count(&entry.RecipesCount).Error; err != nil {
			return nil, err
		}

		query := s.db.WithContext(ctx).
			Where("author_id = ?", author.ID).
			Order("created_at DESC")
		if recipesLimit > 0 {
			query = query.Limit(recipesLimit)
		}
		if err := query.Find(&entry.Recipes).Error; err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	return result, nil
}
