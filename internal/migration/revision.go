package migration

import (
	"strings"
	"time"
)

// TagDelimiter joins a revision's tags into the single TEXT column of the
// tracking table. Tag values must not contain the delimiter character; a tag
// carrying a comma would corrupt the stored set.
const TagDelimiter = ","

// Revision is one schema-migration unit. RevisionID is the primary key of the
// tracking table; DownRevisionID points at the revision this one is stacked on,
// forming a singly-linked backward chain. UpSQL/DownSQL may be empty for a
// bookkeeping-only revision. CreatedAt is assigned by the engine at apply time,
// never by the caller.
type Revision struct {
	RevisionID     string
	DownRevisionID *string
	Message        string
	Tags           []string
	Author         *string
	CreatedAt      time.Time
	UpSQL          string
	DownSQL        string
}

// ListFilter narrows ListMigrations results. Nil pointer / empty slice means
// "no filter on this field" - the omit vs. empty distinction matters, so the
// optional fields are modelled with explicit presence rather than zero values.
type ListFilter struct {
	Author       *string
	Tags         []string
	MinCreatedAt *time.Time
}

// EncodeTags joins a tag set into its delimited storage form. An empty or nil
// set encodes as nil (stored as SQL NULL), not as an empty string.
func EncodeTags(tags []string) *string {
	if len(tags) == 0 {
		return nil
	}
	s := strings.Join(tags, TagDelimiter)
	return &s
}

// DecodeTags splits the delimited storage form back into a tag slice. NULL and
// empty string both decode to an empty set.
func DecodeTags(s *string) []string {
	if s == nil || *s == "" {
		return []string{}
	}
	return strings.Split(*s, TagDelimiter)
}
