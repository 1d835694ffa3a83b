package content

import "time"

// Source records where the active snapshot came from.
type Source string

const (
	SourceUnknown Source = "unknown"
	SourceFile    Source = "file"
	SourceS3      Source = "s3"
)

type Meta struct {
	SHA256     string    `json:"sha256,omitempty"`
	FetchedAt  string    `json:"fetched_at,omitempty"`
	StrapiURL  string    `json:"strapi_url,omitempty"`
	Source     Source    `json:"source,omitempty"`
	Location   string    `json:"location,omitempty"`
	VerifiedAt time.Time `json:"verified_at,omitempty"`
	Signed     bool      `json:"signed"`
}
