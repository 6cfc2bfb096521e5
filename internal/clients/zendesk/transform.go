package zendesk

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gorm.io/datatypes"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// TransformArticle maps an API article onto the stored Article row. It never
// fails; unparseable markup degrades to tag stripping.
func TransformArticle(a Article, author *User) *types.Article {
	out := &types.Article{
		ExternalID:     strconv.FormatInt(a.ID, 10),
		Title:          a.Title,
		Content:        PlainText(a.Body),
		HTMLContent:    a.Body,
		URL:            a.HTMLURL,
		Labels:         datatypes.JSONSlice[string](append([]string{}, a.LabelNames...)),
		Locale:         a.Locale,
		LastModifiedAt: a.UpdatedAt.UTC(),
		ContentHash:    ContentHash(a.Body),
	}
	if author != nil {
		out.Author = author.Name
	}
	if a.SectionID != 0 {
		out.Section = strconv.FormatInt(a.SectionID, 10)
	}
	if a.CategoryID != 0 {
		out.Category = strconv.FormatInt(a.CategoryID, 10)
	}
	return out
}

func ContentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// PlainText extracts visible text from an HTML fragment with whitespace collapsed.
func PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return stripTags(html)
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, n *goquery.Selection) {
			switch goquery.NodeName(n) {
			case "#text":
				b.WriteString(n.Text())
				b.WriteByte(' ')
			case "#comment":
			default:
				walk(n)
			}
		})
	}
	walk(doc.Selection)
	return strings.Join(strings.Fields(b.String()), " ")
}

func stripTags(html string) string {
	s := tagPattern.ReplaceAllString(html, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
