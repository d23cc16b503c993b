package lookup

// Result is the terminal outcome of a lookup. Found=false is a valid
// result, not an error, and is cached briefly so persistently missing
// identifiers do not hammer the external services.
type Result struct {
	Found     bool   `json:"found"`
	Resolved  string `json:"resolved,omitempty"`
	Name      string `json:"name,omitempty"`
	PartID    string `json:"part_id,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Color     string `json:"color,omitempty"`
	ElementID string `json:"element_id,omitempty"`
}

// EnrichOutcome is what the bulk batcher gets back per item: the resolved
// fields plus how much external budget the attempt spent.
type EnrichOutcome struct {
	Result      Result
	APICalls    int
	RateLimited bool
}
