package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/rss-mosaic/app/registry"
	"github.com/mmcdole/gofeed"
)

// Parser turns raw feed markup into Articles.
type Parser struct {
	resolver *Resolver
}

func NewParser(resolver *Resolver) *Parser {
	if resolver == nil {
		resolver = NewResolver(0)
	}
	return &Parser{resolver: resolver}
}

// Run extracts every item of an RSS or Atom document. It never fails:
// markup that cannot be parsed yields no articles, and items with missing
// fields are kept with empty values.
func (p *Parser) Run(ctx context.Context, data []byte, src registry.Source) []Article {
	articles, err := p.Parse(ctx, data, src)
	if err != nil {
		slog.Debug("Failed to parse feed", "source", src.Name, "error", err)
		return nil
	}
	return articles
}

// Parse is Run with the parse error reported. Items are never dropped; the
// error only describes markup that is not a feed at all.
func (p *Parser) Parse(ctx context.Context, data []byte, src registry.Source) ([]Article, error) {
	// gofeed parsers keep per-document state, so each run gets its own.
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, nil
	}

	pass := p.resolver.newPass()
	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		articles = append(articles, p.normalizeItem(ctx, pass, item, src))
	}

	return articles, nil
}

func (p *Parser) normalizeItem(ctx context.Context, pass *resolvePass, item *gofeed.Item, src registry.Source) Article {
	article := Article{
		Title:        strings.TrimSpace(item.Title),
		Link:         strings.TrimSpace(item.Link),
		PublishedRaw: strings.TrimSpace(cmp.Or(item.Published, item.Updated)),
		Summary:      strings.TrimSpace(item.Description),
		Author:       strings.Join(p.extractAuthors(item), ", "),
		Category:     src.Category,
		SourceName:   src.Name,
		Priority:     src.Priority,
	}

	if item.PublishedParsed != nil {
		article.PublishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		article.PublishedAt = item.UpdatedParsed.UTC()
	}

	article.ThumbnailURL = pass.resolve(ctx, item, LookupQuery{
		Category: src.Category,
		Link:     article.Link,
		Title:    article.Title,
	})

	return article
}

func (p *Parser) extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				authorStr := p.formatAuthor(author.Name, author.Email)
				if authorStr != "" {
					authors = append(authors, authorStr)
				}
			}
		}
	} else if item.Author != nil {
		authorStr := p.formatAuthor(item.Author.Name, item.Author.Email)
		if authorStr != "" {
			authors = append(authors, authorStr)
		}
	}

	if len(authors) == 0 && item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator = strings.TrimSpace(creator); creator != "" {
				authors = append(authors, creator)
			}
		}
	}

	return authors
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
