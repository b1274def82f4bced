package services

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/cppla/murmur/models"
	"github.com/cppla/murmur/utils"
)

// FeedItem is a post annotated for display: author joined, live like count,
// and whether the requesting viewer has liked it.
type FeedItem struct {
	models.Post
	LikeCount int64 `json:"like_count"`
	IsLiked   bool  `json:"is_liked"`
}

// FeedService assembles paginated, ordered post lists. Viewer identity is an
// explicit optional parameter; a nil viewer produces the anonymous view with
// all liked flags false.
type FeedService struct {
	db *gorm.DB
}

// NewFeedService creates a FeedService.
func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{db: db}
}

// GlobalFeed returns a page of all posts, newest first.
func (s *FeedService) GlobalFeed(viewer *uint, page, limit int) ([]FeedItem, int64, error) {
	return s.compose(s.db.Model(&models.Post{}), viewer, page, limit)
}

// UserFeed returns a page of one author's posts, newest first.
func (s *FeedService) UserFeed(targetID uint, viewer *uint, page, limit int) ([]FeedItem, int64, error) {
	q := s.db.Model(&models.Post{}).Where("user_id = ?", targetID)
	return s.compose(q, viewer, page, limit)
}

// Timeline returns posts by the viewer and everyone the viewer follows,
// newest first. The viewer's own posts are always included, even when they
// follow nobody.
func (s *FeedService) Timeline(viewerID uint, page, limit int) ([]FeedItem, int64, error) {
	followees := s.db.Model(&models.Follow{}).
		Select("following_id").
		Where("follower_id = ?", viewerID)
	q := s.db.Model(&models.Post{}).
		Where("user_id IN (?) OR user_id = ?", followees, viewerID)
	return s.compose(q, &viewerID, page, limit)
}

// One returns a single post with the same annotations as a feed page.
func (s *FeedService) One(id uint, viewer *uint) (*FeedItem, error) {
	var post models.Post
	if err := s.db.Preload("User").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	item := FeedItem{Post: post}
	if err := s.db.Model(&models.Like{}).Where("post_id = ?", id).Count(&item.LikeCount).Error; err != nil {
		return nil, err
	}
	if viewer != nil {
		var n int64
		if err := s.db.Model(&models.Like{}).
			Where("user_id = ? AND post_id = ?", *viewer, id).Count(&n).Error; err != nil {
			return nil, err
		}
		item.IsLiked = n > 0
	}
	return &item, nil
}

// compose runs the shared assembly: count, fetch the ordered page with the
// author joined, batch the like counts, then annotate the viewer's liked
// flags. Ordering carries id as a secondary key so pages stay stable when
// timestamps collide.
func (s *FeedService) compose(q *gorm.DB, viewer *uint, page, limit int) ([]FeedItem, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	if err := q.Preload("User").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, 0, err
	}

	items := make([]FeedItem, len(posts))
	ids := make([]uint, len(posts))
	for i, p := range posts {
		items[i] = FeedItem{Post: p}
		ids[i] = p.ID
	}
	if len(items) == 0 {
		return items, total, nil
	}

	type likeRow struct {
		PostID uint
		N      int64
	}
	var rows []likeRow
	if err := s.db.Model(&models.Like{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	for i := range items {
		items[i].LikeCount = counts[items[i].ID]
	}

	if viewer != nil {
		s.annotateLiked(items, *viewer)
	}
	return items, total, nil
}

// annotateLiked looks up the viewer's like for each row. The lookups are
// independent reads and run in parallel; a failed lookup leaves that row at
// "not liked" and is logged instead of failing the page.
func (s *FeedService) annotateLiked(items []FeedItem, viewerID uint) {
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var n int64
			err := s.db.Model(&models.Like{}).
				Where("user_id = ? AND post_id = ?", viewerID, items[i].ID).
				Count(&n).Error
			if err != nil {
				if utils.Sugar != nil {
					utils.Sugar.Warnf("liked lookup failed post=%d viewer=%d err=%v", items[i].ID, viewerID, err)
				}
				return
			}
			items[i].IsLiked = n > 0
		}(i)
	}
	wg.Wait()
}
