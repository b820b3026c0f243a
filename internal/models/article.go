package models

// ContentType selects which prompt template an article is summarized with.
type ContentType string

const (
	ContentTechnical    ContentType = "technical"
	ContentAnnouncement ContentType = "announcement"
)

func (c ContentType) Valid() bool {
	return c == ContentTechnical || c == ContentAnnouncement
}

// Article is the normalized form of one fetched blog post: readable text
// only, markup and navigation stripped.
type Article struct {
	URL    string
	Title  string
	Text   string
	Source string
	Type   ContentType
}

// Summary is the two-part model output. Headline holds the haiku verse plus
// the one-sentence hook; Analysis holds the longer explanation that goes
// into the thread.
type Summary struct {
	Headline string
	Analysis string
}
