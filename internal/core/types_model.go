package core

// ModelProfile identifies one image generation backend.
type ModelProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	EndpointID  string `json:"endpoint"`
	OutputSize  string `json:"size"`
	DailyQuota  int    `json:"daily_quota"`
}

// Configured reports whether the profile can be dispatched to.
func (m ModelProfile) Configured() bool {
	return m.EndpointID != ""
}

// StylePreset is a named prompt suffix.
type StylePreset struct {
	ID           string `json:"id"`
	DisplayName  string `json:"name"`
	Group        string `json:"group,omitempty"`
	PromptSuffix string `json:"prompt_suffix"`
}

// ModelsConfig is the models.json file format.
type ModelsConfig struct {
	Models []ModelProfile `json:"models"`
}

// StylesConfig is the styles.json file format.
type StylesConfig struct {
	Styles []StylePreset `json:"styles"`
}

// ModelOption is a model entry in the /config listing.
type ModelOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StyleOption is a style entry in the /config listing.
type StyleOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

// CatalogListing is the /config response body.
type CatalogListing struct {
	Models       []ModelOption `json:"models"`
	Styles       []StyleOption `json:"styles"`
	DefaultModel string        `json:"default_model"`
}
