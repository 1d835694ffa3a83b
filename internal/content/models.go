package content

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/rwaddinsall/hcf2025/internal/richtext"
)

// Entity carries the fields every Strapi v5 document has.
type Entity struct {
	ID          int    `json:"id"`
	DocumentID  string `json:"documentId"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

type MediaFormat struct {
	Name   string  `json:"name"`
	Ext    string  `json:"ext"`
	Mime   string  `json:"mime"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Size   float64 `json:"size"`
	URL    string  `json:"url"`
}

// Media is an uploaded file. Both the flat v5 shape and the v4
// {data:{attributes:{...}}} shape decode into it.
type Media struct {
	ID              int                    `json:"id,omitempty"`
	DocumentID      string                 `json:"documentId,omitempty"`
	Name            string                 `json:"name,omitempty"`
	AlternativeText string                 `json:"alternativeText,omitempty"`
	Caption         string                 `json:"caption,omitempty"`
	Width           int                    `json:"width,omitempty"`
	Height          int                    `json:"height,omitempty"`
	Mime            string                 `json:"mime,omitempty"`
	URL             string                 `json:"url"`
	Formats         map[string]MediaFormat `json:"formats,omitempty"`
}

func (m *Media) UnmarshalJSON(data []byte) error {
	type flat Media
	var v struct {
		flat
		Data *struct {
			ID         int  `json:"id"`
			Attributes flat `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Media(v.flat)
	if m.URL == "" && v.Data != nil {
		*m = Media(v.Data.Attributes)
		if m.ID == 0 {
			m.ID = v.Data.ID
		}
	}
	return nil
}

// Accordion is an expandable FAQ entry. The application fields are only set
// on entries in the applications page.
type Accordion struct {
	ID            int              `json:"id"`
	Title         string           `json:"title"`
	Details       richtext.Content `json:"details"`
	Category      string           `json:"category,omitempty"`
	IsOpen        bool             `json:"isOpen,omitempty"`
	FormURL       string           `json:"form_url,omitempty"`
	Deadline      string           `json:"deadline,omitempty"`
	IsClosed      bool             `json:"is_closed,omitempty"`
	ClosedMessage string           `json:"closed_message,omitempty"`
}

type InfoPage struct {
	Entity
	Heading    string      `json:"heading"`
	Subheading string      `json:"subheading,omitempty"`
	Slug       string      `json:"slug"`
	Accordion  []Accordion `json:"accordion,omitempty"`
}

// NavigationPage is the slim info page projection used for menus.
type NavigationPage struct {
	Entity
	Slug    string `json:"slug"`
	Heading string `json:"heading"`
}

type GeneralPage struct {
	Entity
	Title           string           `json:"title"`
	Slug            string           `json:"slug"`
	Subtitle        string           `json:"subtitle,omitempty"`
	Content         richtext.Content `json:"content"`
	MetaTitle       string           `json:"metaTitle,omitempty"`
	MetaDescription string           `json:"metaDescription,omitempty"`
}

const descriptionLength = 160

// Description is MetaDescription, or an excerpt of the content when the
// editor left it blank.
func (g GeneralPage) Description() string {
	if d := strings.TrimSpace(g.MetaDescription); d != "" {
		return d
	}
	return richtext.Excerpt(g.Content, descriptionLength)
}

type Artist struct {
	Entity
	Name         string           `json:"name"`
	IsLive       bool             `json:"isLive,omitempty"`
	Country      string           `json:"country,omitempty"`
	Bio          richtext.Content `json:"bio"`
	Image        *Media           `json:"image,omitempty"`
	SocialLink   string           `json:"socialLink,omitempty"`
	DisplayOrder int              `json:"displayOrder,omitempty"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ArtistSlug derives the URL slug from an artist name: lower case with
// whitespace runs replaced by "-". An empty name gives "unknown".
func ArtistSlug(name string) string {
	if name == "" {
		return "unknown"
	}
	return whitespaceRun.ReplaceAllString(strings.ToLower(name), "-")
}

func (a Artist) Slug() string { return ArtistSlug(a.Name) }

type ScrollingHeaderText struct {
	Entity
	Text string `json:"Text"`
}

type AcknowledgementOfCountry struct {
	Entity
	Text string `json:"Text"`
}

// Link is the CTA component behind the big ticket link.
type Link struct {
	ID         int    `json:"id"`
	Text       string `json:"text,omitempty"`
	Label      string `json:"label,omitempty"`
	URL        string `json:"url"`
	IsExternal bool   `json:"isExternal,omitempty"`
}

type BigLink struct {
	Entity
	BigTicketLink *Link `json:"BigTicketLink,omitempty"`
}

type PageHeader struct {
	ID              int    `json:"id"`
	Title           string `json:"title,omitempty"`
	Subtitle        string `json:"subtitle,omitempty"`
	Subheading      string `json:"subheading,omitempty"`
	BackgroundImage *Media `json:"backgroundImage,omitempty"`
}

type TextBlock struct {
	ID      int              `json:"id"`
	Content richtext.Content `json:"Content"`
}

type InfoSection struct {
	ID         int         `json:"id"`
	Accordions []Accordion `json:"accordions,omitempty"`
}

type ApplicationsPage struct {
	Entity
	Header *PageHeader   `json:"Header,omitempty"`
	Body   *TextBlock    `json:"Body,omitempty"`
	FAQ    []InfoSection `json:"FAQ,omitempty"`
}

// dateLayouts are the shapes Strapi uses for date and datetime fields.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02"}

// FormatDate renders a CMS date as "January 2, 2006". Input that does not
// parse is returned unchanged.
func FormatDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.Format("January 2, 2006")
		}
	}
	return s
}
