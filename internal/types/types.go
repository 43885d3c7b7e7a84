// Package types defines core data structures for taskeroo.
package types

// NormalizedMessage is the canonical record extracted from one provider message.
type NormalizedMessage struct {
	ID             string   `json:"id"`
	ThreadID       string   `json:"thread_id,omitempty"`
	Subject        string   `json:"subject"`
	SenderEmail    string   `json:"sender_email"`
	Snippet        string   `json:"snippet,omitempty"`
	EmailBody      string   `json:"email_body,omitempty"`
	LabelIDs       []string `json:"label_ids,omitempty"`
	Date           string   `json:"date"`
	ReceivedTime   string   `json:"received_time"`
	AttachmentInfo string   `json:"attachment_info"`
	IsRead         bool     `json:"is_read"`
	IsImportant    bool     `json:"is_important"`
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Email is a stored message row: derived fields computed by the pipeline plus
// the human-override fields written only by the review surface.
type Email struct {
	NormalizedMessage

	Category            string   `json:"category"`
	SecondaryCategories []string `json:"secondary_categories,omitempty"`
	ConfidenceScore     float64  `json:"confidence_score"`
	AllCategories       string   `json:"all_categories,omitempty"`
	MLCategory          string   `json:"ml_category,omitempty"`

	ManuallyUpdatedCategory string `json:"manually_updated_category,omitempty"`
	IsManual                bool   `json:"is_manual"`
	Reviewed                bool   `json:"reviewed"`
	UserTags                string `json:"user_tags,omitempty"`
	UserFeedback            string `json:"user_feedback,omitempty"`
}

// EffectiveCategory returns the manual override when one is set, otherwise the
// engine's category.
func (e *Email) EffectiveCategory() string {
	if e.IsManual && e.ManuallyUpdatedCategory != "" {
		return e.ManuallyUpdatedCategory
	}
	return e.Category
}

// Interaction is one row of the append-only interaction log.
type Interaction struct {
	EmailID     string `json:"email_id" db:"email_id"`
	Interaction string `json:"interaction" db:"interaction"`
	Timestamp   string `json:"timestamp" db:"timestamp"`
}

// Interaction kinds written by the review surface.
const (
	InteractionOverride = "override"
	InteractionRevert   = "revert"
	InteractionReviewed = "reviewed"
	InteractionFeedback = "feedback"
	InteractionTagged   = "tagged"
)

// Built-in categories derived from provider labels and read/importance state.
const (
	CategoryPersonal      = "Personal"
	CategorySocial        = "Social"
	CategoryPromotions    = "Promotions"
	CategoryUpdates       = "Updates"
	CategoryForums        = "Forums"
	CategoryImportantSoft = "Important (Non-urgent)"
)

// BuiltinCategories is the fixed category order used before any keyword-table
// category. Ranking ties resolve in this order.
var BuiltinCategories = []string{
	CategoryPersonal,
	CategorySocial,
	CategoryPromotions,
	CategoryUpdates,
	CategoryForums,
	CategoryImportantSoft,
}

// Gmail system labels the engine and normalizer look at.
const (
	LabelUnread     = "UNREAD"
	LabelImportant  = "IMPORTANT"
	LabelTrash      = "TRASH"
	LabelPersonal   = "CATEGORY_PERSONAL"
	LabelSocial     = "CATEGORY_SOCIAL"
	LabelPromotions = "CATEGORY_PROMOTIONS"
	LabelUpdates    = "CATEGORY_UPDATES"
	LabelForums     = "CATEGORY_FORUMS"
)

// FetchSummary holds the counters of one fetch-and-persist run.
type FetchSummary struct {
	Query      string `json:"query"`
	Listed     int    `json:"listed"`
	Duplicates int    `json:"duplicates"`
	Processed  int    `json:"processed"`
	New        int    `json:"new"`
	Updated    int    `json:"updated"`
	Failed     int    `json:"failed"`
}

// CategoryCount pairs an effective category with its row count.
type CategoryCount struct {
	Category string `json:"category" db:"category"`
	Count    int    `json:"count" db:"count"`
}

// Summary holds the review statistics shown by the summary command.
type Summary struct {
	Total           int             `json:"total"`
	Unreviewed      int             `json:"unreviewed"`
	Manual          int             `json:"manual"`
	ReviewedPercent float64         `json:"reviewed_percent"`
	TopCategories   []CategoryCount `json:"top_categories"`
	RecentManual    []*Email        `json:"recent_manual"`
}
