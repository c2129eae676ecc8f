package catalog

import "strings"

// Media is a single AniList-shaped media node, trimmed to the fields the
// resolver's matching and scoring logic needs.
type Media struct {
	ID                int                 `json:"id"`
	Title             MediaTitle          `json:"title"`
	Synonyms          []string            `json:"synonyms"`
	Format            string              `json:"format"`
	Status            string              `json:"status"`
	Episodes          *int                `json:"episodes"`
	NextAiringEpisode *AiringNode         `json:"nextAiringEpisode"`
	Relations         *RelationConnection `json:"relations"`
	CoverImage        *CoverImage         `json:"coverImage"`
}

// CoverImage carries the catalog's cover-art URLs, largest first.
type CoverImage struct {
	ExtraLarge string `json:"extraLarge"`
	Large      string `json:"large"`
}

// MediaTitle carries the romaji/english/native title triplet.
type MediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// NameBlob concatenates every title and synonym, lowercased, for substring
// matching against show aliases.
func (m Media) NameBlob() string {
	parts := []string{m.Title.Romaji, m.Title.English, m.Title.Native}
	parts = append(parts, m.Synonyms...)
	blob := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		blob += " " + p
	}
	return strings.ToLower(blob)
}

// RelationConnection is the AniList relations.edges shape, used to infer
// a candidate's season number from its prequel chain.
type RelationConnection struct {
	Edges []RelationEdge `json:"edges"`
}

type RelationEdge struct {
	RelationType string       `json:"relationType"`
	Node         RelationNode `json:"node"`
}

type RelationNode struct {
	ID int `json:"id"`
}

// AiringNode is one entry of a Page.airingSchedules page, or the
// nextAiringEpisode field.
type AiringNode struct {
	Episode  int   `json:"episode"`
	AiringAt int64 `json:"airingAt"`
}

// pageMediaResponse is the `Page.media` GraphQL response shape for a search query.
type pageMediaResponse struct {
	Data struct {
		Page struct {
			Media []Media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// mediaByIDResponse is the `Media(id: ...)` response shape.
type mediaByIDResponse struct {
	Data struct {
		Media *Media `json:"Media"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// airingScheduleResponse is the `Page.airingSchedules` response shape.
type airingScheduleResponse struct {
	Data struct {
		Page struct {
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
			AiringSchedules []AiringNode `json:"airingSchedules"`
		} `json:"Page"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}
