package registry

import "slices"

var _ Registry = Static(nil)

// Static serves a fixed, in-memory list of sources.
type Static []Source

func (s Static) ListSources() []Source {
	return slices.Clone(s)
}

// DefaultCategories is the canonical order of the well-known categories.
// Discovered categories are listed in this order, ahead of any others.
var DefaultCategories = []string{"cybersecurity", "cloud-security", "tech", "science", "news"}

// Defaults is used when no feeds directory is available.
var Defaults = Static{
	{Name: "PortSwigger Research", URL: "https://portswigger.net/research/rss", Category: "Cybersecurity", Priority: 3},
	{Name: "Google Project Zero", URL: "https://googleprojectzero.blogspot.com/feeds/posts/default", Category: "Cybersecurity", Priority: 3},
	{Name: "TrustedSec", URL: "https://trustedsec.com/feed.rss", Category: "Cybersecurity", Priority: 2},
	{Name: "SpecterOps Blog", URL: "https://posts.specterops.io/feed", Category: "Cybersecurity", Priority: 2},
	{Name: "Hacking The Cloud", URL: "https://hackingthe.cloud/feed_rss_created.xml", Category: "Cloud Security", Priority: 2},
	{Name: "CloudSecList", URL: "https://cloudseclist.com/feed.xml", Category: "Cloud Security", Priority: 2},
	{Name: "AWS Steele", URL: "https://awsteele.com/feed.xml", Category: "Cloud Security", Priority: 1},
	{Name: "Hacker News", URL: "https://hnrss.org/frontpage", Category: "Tech", Priority: 1},
	{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index", Category: "Tech", Priority: 1},
	{Name: "Quanta Magazine", URL: "https://www.quantamagazine.org/feed/", Category: "Science", Priority: 1},
	{Name: "BBC News", URL: "https://feeds.bbci.co.uk/news/rss.xml", Category: "News", Priority: 0},
}
