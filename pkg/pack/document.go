package pack

import "regexp"

// Document is one caller-supplied input to Build. One Document becomes one Block.
type Document struct {
	// Text is the document body. Required, must be non-empty after trimming.
	Text string

	// ID is a stable external identifier, surfaced on hits as Hit.Source.
	ID string

	// Heading is a short field used for the ranking heading-overlap boost.
	Heading string

	// Namespace is a scoping label queries can filter on.
	Namespace string
}

// Block is the internal, canonical unit of retrieval. One Document becomes
// one Block at build time; BlockID is dense and assigned in input order.
type Block struct {
	BlockID   uint32
	Text      string
	Heading   string
	DocID     string
	Namespace string
	TokenLen  uint32
}

// blockPayload is the JSON shape persisted for one block (§4.4).
type blockPayload struct {
	Text      string  `json:"text"`
	Heading   *string `json:"heading"`
	DocID     *string `json:"docId"`
	Namespace *string `json:"namespace"`
	Len       uint32  `json:"len"`
}

var markdownStripPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```.*?```"),          // fenced code blocks
	regexp.MustCompile("`([^`]*)`"),              // inline code
	regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`),   // images
	regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`),  // links, keep label
	regexp.MustCompile(`(?m)^#{1,6}\s*`),         // ATX heading markers
	regexp.MustCompile(`\*\*([^*]*)\*\*`),        // bold
	regexp.MustCompile(`\*([^*]*)\*`),            // italic
	regexp.MustCompile("(?m)^>\\s?"),             // blockquote markers
	regexp.MustCompile(`(?m)^\s*[-*+]\s+`),       // list markers
}

// stripMarkdown removes common Markdown decoration while preserving the
// textual content used for tokenization, heading overlap, and snippet
// projection. It is intentionally conservative: unknown syntax passes through.
func stripMarkdown(s string) string {
	out := s
	for _, re := range markdownStripPatterns {
		out = re.ReplaceAllString(out, "$1")
	}
	return out
}
