package zendesk

import "time"

// Article is the Help Center article as the API returns it.
type Article struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	HTMLURL    string    `json:"html_url"`
	AuthorID   int64     `json:"author_id"`
	SectionID  int64     `json:"section_id"`
	CategoryID int64     `json:"category_id"`
	Locale     string    `json:"locale"`
	LabelNames []string  `json:"label_names"`
	Outdated   bool      `json:"outdated"`
	Draft      bool      `json:"draft"`
	Promoted   bool      `json:"promoted"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Section struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  int64     `json:"category_id"`
	Locale      string    `json:"locale"`
	HTMLURL     string    `json:"html_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Locale      string    `json:"locale"`
	HTMLURL     string    `json:"html_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Criteria selects articles. The first non-empty list wins, in field order.
type Criteria struct {
	ArticleIDs  []int64  `json:"articleIds,omitempty"`
	SectionIDs  []int64  `json:"sectionIds,omitempty"`
	CategoryIDs []int64  `json:"categoryIds,omitempty"`
	LabelNames  []string `json:"labelNames,omitempty"`
	Locale      string   `json:"locale,omitempty"`
}

func (c Criteria) Empty() bool {
	return len(c.ArticleIDs) == 0 && len(c.SectionIDs) == 0 && len(c.CategoryIDs) == 0 && len(c.LabelNames) == 0
}

// ListOptions addresses one page of GET /help_center/articles.json.
type ListOptions struct {
	SectionID  int64
	CategoryID int64
	LabelNames []string
	Locale     string
	StartTime  *time.Time
	PerPage    int
	Page       int
}

type articlesPage struct {
	Articles []Article `json:"articles"`
	NextPage *string   `json:"next_page"`
	Count    int       `json:"count"`
}

type articleEnvelope struct {
	Article *Article `json:"article"`
}

type sectionsEnvelope struct {
	Sections []Section `json:"sections"`
}

type categoriesEnvelope struct {
	Categories []Category `json:"categories"`
}

type userEnvelope struct {
	User *User `json:"user"`
}
