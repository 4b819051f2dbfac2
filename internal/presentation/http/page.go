package httppresentation

import (
	"embed"
	"html/template"
)

//go:embed templates/checkout.html
var templatesFS embed.FS

var checkoutPage = template.Must(template.ParseFS(templatesFS, "templates/checkout.html"))

// PageConfig is what the checkout page needs to load the buttons SDK.
type PageConfig struct {
	ClientID      string
	Currency      string
	DefaultAmount string
}

type pageData struct {
	PageConfig
	CreateOrderPath   string
	CompleteOrderPath string
}
