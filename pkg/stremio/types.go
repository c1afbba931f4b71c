package stremio

// Manifest represents a Stremio addon manifest
type Manifest struct {
	ID            string        `json:"id"`
	Version       string        `json:"version"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Types         []string      `json:"types"`
	IDPrefixes    []string      `json:"idPrefixes"`
	Catalogs      []CatalogItem `json:"catalogs"`
	Resources     []string      `json:"resources"`
	BehaviorHints BehaviorHints `json:"behaviorHints"`
}

// BehaviorHints tells Stremio whether the addon offers a configuration page.
type BehaviorHints struct {
	Configurable          bool   `json:"configurable"`
	ConfigurationRequired bool   `json:"configurationRequired"`
	ConfigurationLocation string `json:"configurationLocation,omitempty"`
}

// CatalogItem represents a Stremio manifest catalog item
type CatalogItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Subtitle represents a Stremio subtitle
type Subtitle struct {
	ID   string `json:"id"`
	Lang string `json:"lang"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Subtitles is the response body of the subtitles resource.
type Subtitles struct {
	Subtitles []Subtitle `json:"subtitles"`
}
