package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"nidar/preorder/internal/models"
	"nidar/preorder/internal/services"
)

//go:embed templates/*.html
var templateFS embed.FS

// Views holds the parsed page templates.
type Views struct {
	tmpl *template.Template
}

var templateFuncs = template.FuncMap{
	"formatTime": services.FormatTimeForDisplay,
	"rupees":     func(n int) string { return "Rs." + strconv.Itoa(n) },
}

func LoadViews() (*Views, error) {
	tmpl, err := template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Views{tmpl: tmpl}, nil
}

// Render executes a page into memory so a failing template never sends half a page.
func (v *Views) Render(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := v.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

type menuRow struct {
	models.MenuItem
	Quantity int
}

type menuTab struct {
	Category models.Category
	Label    string
	Caption  string
	Active   bool
	Items    []menuRow
}

// pageData is what every view template receives.
type pageData struct {
	services.SessionSnapshot
	Tabs []menuTab
	Tab  models.Category
	// ShareHref is the deep link marked safe; html/template rejects non-http schemes.
	ShareHref          template.URL
	MinLeadMinutes     int
	BackgroundImageURL string
	LogoURL            string
}

type faultData struct {
	BackgroundImageURL string
	LogoURL            string
}

func priceCaption(category models.Category) string {
	lo, hi := models.CategoryPriceRange(category)
	if lo == hi {
		return fmt.Sprintf("All %s Rs.%d", strings.ToLower(category.Label()), lo)
	}
	return fmt.Sprintf("%s Rs.%d - Rs.%d", category.Label(), lo, hi)
}

// parseTab falls back to the first category for anything unknown.
func parseTab(raw string) models.Category {
	for _, category := range models.Categories() {
		if string(category) == raw {
			return category
		}
	}
	return models.Categories()[0]
}

func buildTabs(items map[string]int, active models.Category) []menuTab {
	var tabs []menuTab
	for _, category := range models.Categories() {
		tab := menuTab{
			Category: category,
			Label:    category.Label(),
			Caption:  priceCaption(category),
			Active:   category == active,
		}
		for _, item := range models.MenuItemsByCategory(category) {
			tab.Items = append(tab.Items, menuRow{MenuItem: item, Quantity: items[item.ID]})
		}
		tabs = append(tabs, tab)
	}
	return tabs
}
