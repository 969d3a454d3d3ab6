package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/wizard"
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"list": func(items ...string) []string { return items },
		"add":  func(a, b int) int { return a + b },
		"sub":  func(a, b int) int { return a - b },
		"pct": func(f float64) string {
			return fmt.Sprintf("%.1f%%", math.Max(0, math.Min(100, f)))
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("02 Jan 2006")
		},
		"contains": func(list []string, s string) bool {
			for _, v := range list {
				if v == s {
					return true
				}
			}
			return false
		},
		"isCustomSection": func(name string) bool {
			return !models.IsPredefinedSection(name)
		},
		"imageKind": func(img models.Image) string {
			if _, ok := img.(models.FileImage); ok {
				return models.ImageKindFile
			}
			return models.ImageKindURL
		},
		"imageSrc": imageSrc,
		"query":    query,
		"pageHref": func(path, q string, page int) template.URL {
			if q != "" {
				q += "&"
			}
			return template.URL(fmt.Sprintf("%s?%spage=%d", path, q, page))
		},
		"tabs": func() []wizard.Tab {
			return wizard.Tabs
		},
		"tabLabel": func(t wizard.Tab) string {
			switch t {
			case wizard.TabBasic:
				return "Basic information"
			case wizard.TabDescription:
				return "Description"
			case wizard.TabAttributes:
				return "Attributes"
			case wizard.TabMedia:
				return "Images"
			}
			return string(t)
		},
		"statusClass": func(s models.ContributionStatus) string {
			switch s {
			case models.StatusApproved:
				return "badge-approved"
			case models.StatusRejected:
				return "badge-rejected"
			default:
				return "badge-pending"
			}
		},
		// dict builds a map for passing several values to a sub-template
		"dict": func(pairs ...interface{}) (map[string]interface{}, error) {
			if len(pairs)%2 != 0 {
				return nil, errors.New("dict needs key/value pairs")
			}
			m := make(map[string]interface{}, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				key, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
				}
				m[key] = pairs[i+1]
			}
			return m, nil
		},
	}
}

// imageSrc is the address the browser loads a wizard image from. File images
// are served by the wizard itself.
func imageSrc(wizardKey string, img models.Image) string {
	switch v := img.(type) {
	case models.URLImage:
		return v.URL
	case models.FileImage:
		return fmt.Sprintf("/contribute/wizard/%s/images/%s", wizardKey, v.ID)
	}
	return ""
}

// query encodes key/value pairs, skipping empty values
func query(pairs ...string) string {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			v.Set(pairs[i], pairs[i+1])
		}
	}
	return v.Encode()
}
