package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix      = "post:%d"
	PortfolioKeyPrefix = "portfolio:%d"
	PostsListKey       = "posts:front"
	CategoryListKey    = "categories"
	TagListKey         = "tags"
)

const (
	PostTTL     = 30 * time.Minute
	ListTTL     = 1 * time.Minute
	TaxonomyTTL = 10 * time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func PortfolioKey(portfolioID uint) string {
	return fmt.Sprintf(PortfolioKeyPrefix, portfolioID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID), PostsListKey)
}

func InvalidatePortfolio(ctx context.Context, portfolioID uint) {
	Invalidate(ctx, PortfolioKey(portfolioID))
}
