package model

type (
	DiscoverMode string

	// Article is a single search engine result shown on the discover feed.
	Article struct {
		Title        string `json:"title"`
		URL          string `json:"url"`
		Content      string `json:"content,omitempty"`
		Thumbnail    string `json:"thumbnail,omitempty"`
		ThumbnailSrc string `json:"thumbnail_src,omitempty"`
		ImgSrc       string `json:"img_src,omitempty"`
		Author       string `json:"author,omitempty"`
	}

	// DiscoverFeed is the payload of the discover endpoint.
	DiscoverFeed struct {
		Blogs []Article `json:"blogs"`
	}

	DiscoverTopic struct {
		Queries []string
		Links   []string
	}
)

const (
	DiscoverNormal  DiscoverMode = "normal"
	DiscoverPreview DiscoverMode = "preview"

	DefaultDiscoverTopic = "policy-legislation"
)

// DiscoverTopics lists the site and query pairs searched for each topic.
var DiscoverTopics = map[string]DiscoverTopic{
	"policy-legislation": {
		Queries: []string{"IRS guidance update", "tax legislation update", "treasury tax policy statement", "congress tax bill analysis"},
		Links:   []string{"irs.gov/newsroom", "home.treasury.gov/news", "taxfoundation.org", "reuters.com/legal/government"},
	},
	"corporate-international": {
		Queries: []string{"corporate tax planning news", "OECD pillar two update", "transfer pricing dispute", "global tax reform analysis"},
		Links:   []string{"news.bloombergtax.com", "tax.thomsonreuters.com/news", "oecd.org/tax", "kpmg.com"},
	},
	"compliance-enforcement": {
		Queries: []string{"IRS enforcement action", "tax court decision", "tax compliance guidance", "tax fraud investigation"},
		Links:   []string{"law360.com/tax-authority", "taxnotes.com", "justice.gov/tax", "irs.gov/compliance"},
	},
	"advisory-strategy": {
		Queries: []string{"tax strategy insights", "M&A tax planning", "tax technology transformation", "pillar two readiness guidance"},
		Links:   []string{"deloitte.com", "ey.com/en_us/tax", "pwc.com/us/en/services/tax.html", "bdo.com/insights/tax"},
	},
	"personal-small-business": {
		Queries: []string{"small business tax deductions", "IRS filing guidance", "retirement tax planning tips", "tax credits for small business"},
		Links:   []string{"irs.gov/newsroom", "tax.thomsonreuters.com/news", "forbes.com/taxes", "accountingtoday.com/tag/taxes"},
	},
}

func ParseDiscoverMode(s string) DiscoverMode {
	if DiscoverMode(s) == DiscoverPreview {
		return DiscoverPreview
	}

	return DiscoverNormal
}
