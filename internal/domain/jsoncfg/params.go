package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ColorsConfig captures the palette choices made in the builder wizard.
type ColorsConfig struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
}

// FontsConfig captures the typography choices made in the builder wizard.
type FontsConfig struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// PageConfig describes one page of the requested sitemap.
type PageConfig struct {
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}

// ParamsJSON is the typed view of the generation parameter bag the console
// validates before enqueueing a job. The supervisor itself treats the bag as
// opaque; this contract exists only at the start-job boundary.
type ParamsJSON struct {
	Version             string       `json:"version"`
	Prompt              string       `json:"prompt"`
	BusinessType        string       `json:"business_type"`
	BusinessName        string       `json:"business_name"`
	BusinessDescription string       `json:"business_description"`
	WebsiteTitle        string       `json:"website_title"`
	Colors              ColorsConfig `json:"colors"`
	Fonts               FontsConfig  `json:"fonts"`
	Pages               []PageConfig `json:"pages"`
	Locale              string       `json:"locale"`
}

const (
	// DefaultParamsVersion represents the schema version persisted for params.
	DefaultParamsVersion = "2024-09"
	// DefaultBusinessType is applied when the wizard omits a category.
	DefaultBusinessType = "agency"
	// MaxPages caps the sitemap size accepted from the wizard.
	MaxPages = 12
)

// Normalize applies server defaults and limits in place.
func (p *ParamsJSON) Normalize(preferredLocale string) {
	if p == nil {
		return
	}
	if p.Version == "" {
		p.Version = DefaultParamsVersion
	}
	if p.BusinessType == "" {
		p.BusinessType = DefaultBusinessType
	}
	if p.WebsiteTitle == "" {
		p.WebsiteTitle = p.BusinessName
	}
	if len(p.Pages) > MaxPages {
		p.Pages = p.Pages[:MaxPages]
	}
	if p.Locale == "" {
		if preferredLocale != "" {
			p.Locale = preferredLocale
		} else {
			p.Locale = "en"
		}
	}
}

// Validate ensures the params satisfy the contract before persistence.
func (p ParamsJSON) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" && strings.TrimSpace(p.BusinessDescription) == "" {
		return fmt.Errorf("prompt or business_description is required")
	}
	if strings.TrimSpace(p.BusinessName) == "" {
		return fmt.Errorf("business_name is required")
	}
	if len(p.Pages) > MaxPages {
		return fmt.Errorf("pages must not exceed %d entries", MaxPages)
	}
	for i, page := range p.Pages {
		if strings.TrimSpace(page.Title) == "" {
			return fmt.Errorf("pages[%d].title is required", i)
		}
	}
	return nil
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
