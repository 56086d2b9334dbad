package models

// Kind identifies which parent entity a counter adjustment or like
// association targets.
type Kind string

const (
	KindPost      Kind = "post"
	KindComment   Kind = "comment"
	KindCategory  Kind = "category"
	KindTag       Kind = "tag"
	KindPortfolio Kind = "portfolio"
)

// Counter field names. Counters are persisted columns maintained exclusively
// through the counter store; they are never written from client input.
const (
	FieldLikeCount    = "like_count"
	FieldCommentCount = "comment_count"
	FieldViewCount    = "view_count"
	FieldPostCount    = "post_count"
)

// Likeable reports whether the kind participates in like associations.
func (k Kind) Likeable() bool {
	switch k {
	case KindPost, KindComment, KindPortfolio:
		return true
	}
	return false
}

// Viewable reports whether the kind participates in view counting.
func (k Kind) Viewable() bool {
	return k == KindPost || k == KindPortfolio
}
