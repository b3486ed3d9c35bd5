// Package catalog holds the read-only model registry and style catalog.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"imagegen/internal/core"
)

// ErrModelNotFound is returned for unknown and unconfigured models alike.
var ErrModelNotFound = errors.New("model not found")

// ModelRegistry maps model IDs to backend profiles.
type ModelRegistry struct {
	order    []string
	profiles map[string]core.ModelProfile
}

// NewModelRegistry builds a registry, rejecting duplicate or empty IDs.
func NewModelRegistry(profiles []core.ModelProfile) (*ModelRegistry, error) {
	r := &ModelRegistry{
		order:    make([]string, 0, len(profiles)),
		profiles: make(map[string]core.ModelProfile, len(profiles)),
	}
	for _, p := range profiles {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("model with empty id (name %q)", p.DisplayName)
		}
		if _, dup := r.profiles[p.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", p.ID)
		}
		if p.DisplayName == "" {
			p.DisplayName = p.ID
		}
		r.order = append(r.order, p.ID)
		r.profiles[p.ID] = p
	}
	return r, nil
}

// Resolve returns the profile for modelID. Profiles without an endpoint are
// reported as not found.
func (r *ModelRegistry) Resolve(modelID string) (core.ModelProfile, error) {
	p, ok := r.profiles[modelID]
	if !ok || !p.Configured() {
		return core.ModelProfile{}, ErrModelNotFound
	}
	return p, nil
}

// List returns configured profiles in registration order.
func (r *ModelRegistry) List() []core.ModelProfile {
	out := make([]core.ModelProfile, 0, len(r.order))
	for _, id := range r.order {
		if p := r.profiles[id]; p.Configured() {
			out = append(out, p)
		}
	}
	return out
}

// Quotas returns the daily quota per configured model.
func (r *ModelRegistry) Quotas() map[string]int {
	quotas := make(map[string]int, len(r.profiles))
	for _, p := range r.List() {
		quotas[p.ID] = p.DailyQuota
	}
	return quotas
}

// StyleCatalog maps style IDs to presets. Unknown IDs resolve to the "none" preset.
type StyleCatalog struct {
	order   []string
	presets map[string]core.StylePreset
}

// NewStyleCatalog builds a catalog. The "none" and "custom" entries are added
// when missing so every lookup has a fallback.
func NewStyleCatalog(presets []core.StylePreset) (*StyleCatalog, error) {
	c := &StyleCatalog{
		order:   make([]string, 0, len(presets)+2),
		presets: make(map[string]core.StylePreset, len(presets)+2),
	}
	for _, p := range presets {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("style with empty id (name %q)", p.DisplayName)
		}
		if _, dup := c.presets[p.ID]; dup {
			return nil, fmt.Errorf("duplicate style id %q", p.ID)
		}
		if p.DisplayName == "" {
			p.DisplayName = p.ID
		}
		switch p.ID {
		case core.StyleIDNone, core.StyleIDCustom:
			// suffix for these sentinels never comes from the catalog
			p.PromptSuffix = ""
		}
		c.order = append(c.order, p.ID)
		c.presets[p.ID] = p
	}

	if _, ok := c.presets[core.StyleIDNone]; !ok {
		c.presets[core.StyleIDNone] = NoneStyle()
		c.order = append([]string{core.StyleIDNone}, c.order...)
	}
	if _, ok := c.presets[core.StyleIDCustom]; !ok {
		c.presets[core.StyleIDCustom] = core.StylePreset{ID: core.StyleIDCustom, DisplayName: core.StyleNameCustom, Group: core.StyleNameCustom}
		c.order = append(c.order, core.StyleIDCustom)
	}
	return c, nil
}

// Resolve returns the preset for styleID, or the "none" preset.
func (c *StyleCatalog) Resolve(styleID string) core.StylePreset {
	if p, ok := c.presets[styleID]; ok {
		return p
	}
	return c.presets[core.StyleIDNone]
}

// ListAll returns every preset in catalog order.
func (c *StyleCatalog) ListAll() []core.StylePreset {
	out := make([]core.StylePreset, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.presets[id])
	}
	return out
}

// NoneStyle is the default preset with an empty suffix.
func NoneStyle() core.StylePreset {
	return core.StylePreset{ID: core.StyleIDNone, DisplayName: core.StyleNameDefault}
}

// Listing builds the /config response body.
func Listing(models *ModelRegistry, styles *StyleCatalog, defaultModel string) core.CatalogListing {
	listing := core.CatalogListing{
		Models:       []core.ModelOption{},
		Styles:       []core.StyleOption{},
		DefaultModel: defaultModel,
	}
	for _, m := range models.List() {
		listing.Models = append(listing.Models, core.ModelOption{ID: m.ID, Name: m.DisplayName})
	}
	for _, s := range styles.ListAll() {
		listing.Styles = append(listing.Styles, core.StyleOption{ID: s.ID, Name: s.DisplayName, Group: s.Group})
	}
	return listing
}
