package knowledge

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

const (
	maxPerFeed = 20
	// Feed summaries shorter than this are replaced by the article text.
	minSummaryRunes = 200
	maxPageBytes    = 4 << 20
)

// Feed is an RSS/Atom source of psychoeducation articles.
type Feed struct {
	URL  string
	Name string
}

// ImportResult counts what an import run did.
type ImportResult struct {
	Found      int
	Added      int
	Duplicates int
	Failed     int
}

// Importer adds feed items to the shared partition.
type Importer struct {
	fusion *Fusion
	parser *gofeed.Parser
	client *http.Client
}

// NewImporter creates a feed importer writing through fusion.
func NewImporter(fusion *Fusion, timeout time.Duration) *Importer {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	parser := gofeed.NewParser()
	parser.Client = client
	return &Importer{fusion: fusion, parser: parser, client: client}
}

// Import parses every feed and stores items whose title is not yet in the
// shared partition. A feed that cannot be parsed is logged and skipped.
func (im *Importer) Import(ctx context.Context, feeds []Feed) (*ImportResult, error) {
	r := &ImportResult{}
	for _, fc := range feeds {
		name := fc.Name
		if name == "" {
			name = fc.URL
		}

		feed, err := im.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			r.Failed++
			continue
		}

		items := feed.Items
		if len(items) > maxPerFeed {
			items = items[:maxPerFeed]
		}
		added := 0
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return r, err
			}
			title := strings.TrimSpace(item.Title)
			if title == "" {
				continue
			}
			r.Found++

			exists, err := im.fusion.db.SharedKnowledgeTitleExists(title)
			if err != nil {
				return r, fmt.Errorf("checking %q: %w", title, err)
			}
			if exists {
				r.Duplicates++
				continue
			}

			content := im.itemContent(ctx, item)
			if content == "" {
				r.Failed++
				continue
			}
			if _, err := im.fusion.AddShared(ctx, title, content); err != nil {
				log.Printf("Failed to add %q: %v", title, err)
				r.Failed++
				continue
			}
			added++
		}
		r.Added += added
		log.Printf("Imported %d entries from %s", added, name)
	}
	return r, nil
}

// itemContent returns the feed summary, or the extracted article text when
// the summary is too short and the article can be fetched.
func (im *Importer) itemContent(ctx context.Context, item *gofeed.Item) string {
	summary := item.Content
	if summary == "" {
		summary = item.Description
	}
	summary = htmlText(summary)
	if len([]rune(summary)) >= minSummaryRunes || item.Link == "" {
		return summary
	}

	article, err := im.fetchArticle(ctx, item.Link)
	if err != nil {
		log.Printf("Could not fetch %s: %v", item.Link, err)
		return summary
	}
	if len([]rune(article)) > len([]rune(summary)) {
		return article
	}
	return summary
}

func (im *Importer) fetchArticle(ctx context.Context, articleURL string) (string, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, "GET", articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "MindCare/1.0 (knowledge importer)")

	resp, err := im.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsedURL)
	if err != nil {
		return "", fmt.Errorf("extracting article: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}

// htmlText strips markup and collapses whitespace.
func htmlText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
