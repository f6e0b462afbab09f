package model

// Citation is one source document the agent grounded an answer on.
type Citation struct {
	PageContent string           `json:"pageContent,omitempty"`
	Metadata    CitationMetadata `json:"metadata"`
}

type CitationMetadata struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}
