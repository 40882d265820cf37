package feed

import (
	"cmp"
	"context"
	"errors"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const DefaultLookupTimeout = 5 * time.Second

var imgSrcExpr = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)

// Resolver picks a representative image for a feed item. Strategies run in
// order and the first non-empty URL wins: media attachment, enclosure,
// embedded <img>, the image gofeed attached to the item (itunes:image),
// then the configured lookups.
type Resolver struct {
	lookups       []ImageLookup
	lookupTimeout time.Duration
}

func NewResolver(lookupTimeout time.Duration, lookups ...ImageLookup) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Resolver{
		lookups:       lookups,
		lookupTimeout: lookupTimeout,
	}
}

// Resolve returns an image URL, or "" when nothing matched.
func (r *Resolver) Resolve(ctx context.Context, item *gofeed.Item, q LookupQuery) string {
	return r.newPass().resolve(ctx, item, q)
}

// resolvePass carries lookup state across the items of one document. A
// lookup that timed out or could not be reached is not tried again in the
// same pass.
type resolvePass struct {
	*Resolver
	disabled map[string]bool
}

func (r *Resolver) newPass() *resolvePass {
	return &resolvePass{Resolver: r, disabled: make(map[string]bool)}
}

func (p *resolvePass) resolve(ctx context.Context, item *gofeed.Item, q LookupQuery) string {
	if url := mediaURL(item); url != "" {
		return url
	}
	if url := enclosureURL(item); url != "" {
		return url
	}
	if url := embeddedImageURL(cmp.Or(item.Content, item.Description)); url != "" {
		return url
	}
	if item.Image != nil {
		if url := strings.TrimSpace(item.Image.URL); url != "" {
			return url
		}
	}
	return p.lookup(ctx, q)
}

func (p *resolvePass) lookup(ctx context.Context, q LookupQuery) string {
	for _, l := range p.lookups {
		// Past the caller's deadline the item keeps an empty thumbnail.
		if ctx.Err() != nil {
			return ""
		}
		if p.disabled[l.Name()] {
			continue
		}

		lookupCtx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
		image, err := l.Lookup(lookupCtx, q)
		timedOut := lookupCtx.Err() != nil
		cancel()

		if err != nil {
			if timedOut || unavailable(err) {
				p.disabled[l.Name()] = true
			}
			slog.Debug("Image lookup failed", "lookup", l.Name(), "category", q.Category, "link", q.Link, "error", err)
			continue
		}
		if image != "" {
			return image
		}
	}
	return ""
}

// unavailable reports whether err means the lookup service itself cannot
// answer, as opposed to having no image for this item.
func unavailable(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) || errors.Is(err, errLookupUnavailable)
}

func mediaURL(item *gofeed.Item) string {
	media := item.Extensions["media"]
	if media != nil {
		if url := firstURLAttr(media["content"], media["thumbnail"]); url != "" {
			return url
		}
		for _, group := range media["group"] {
			if url := firstURLAttr(group.Children["content"], group.Children["thumbnail"]); url != "" {
				return url
			}
		}
	}
	return ""
}

func firstURLAttr(lists ...[]ext.Extension) string {
	for _, list := range lists {
		for _, e := range list {
			if url := strings.TrimSpace(e.Attrs["url"]); url != "" {
				return url
			}
		}
	}
	return ""
}

func enclosureURL(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if url := strings.TrimSpace(enclosure.URL); url != "" {
			return url
		}
	}
	return ""
}

func embeddedImageURL(content string) string {
	if !strings.Contains(content, "img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err == nil {
		var src string
		doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src = strings.TrimSpace(img.AttrOr("src", ""))
			return src == ""
		})
		if src != "" {
			return src
		}
	}

	// Entity-escaped markup is invisible to the HTML parser.
	if match := imgSrcExpr.FindStringSubmatch(html.UnescapeString(content)); match != nil {
		return match[1]
	}
	return ""
}
