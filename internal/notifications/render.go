package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Rendered is a fully rendered email without addressing.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer turns intents into email bodies.
type Renderer struct {
	storeName    string
	supportEmail string
	html         map[enums.NotificationKind]*template.Template
	text         *texttemplate.Template
	now          func() time.Time
}

// NewRenderer parses the embedded templates once. Every known kind gets its
// own clone of the shared layout.
func NewRenderer(storeName, supportEmail string) (*Renderer, error) {
	base, err := template.New("layout").ParseFS(templateFS, "templates/layout.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	kinds := []enums.NotificationKind{
		enums.NotificationOrderConfirmation,
		enums.NotificationOrderShipped,
		enums.NotificationOrderDelivered,
		enums.NotificationOrderStatusUpdate,
		enums.NotificationDonationReceipt,
	}
	html := make(map[enums.NotificationKind]*template.Template, len(kinds))
	for _, kind := range kinds {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout: %w", err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+string(kind)+".html.tmpl"); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		html[kind] = clone
	}

	text, err := texttemplate.New("message.txt.tmpl").ParseFS(templateFS, "templates/message.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}

	return &Renderer{
		storeName:    strings.TrimSpace(storeName),
		supportEmail: strings.TrimSpace(supportEmail),
		html:         html,
		text:         text,
		now:          time.Now,
	}, nil
}

// Render produces the subject and both bodies for an intent.
func (r *Renderer) Render(intent Intent) (Rendered, error) {
	tmpl, ok := r.html[intent.Kind]
	if !ok {
		return Rendered{}, fmt.Errorf("no template for notification kind %q", intent.Kind)
	}
	view := r.viewFor(intent)

	var html bytes.Buffer
	if err := tmpl.ExecuteTemplate(&html, "layout", view); err != nil {
		return Rendered{}, fmt.Errorf("render %s html: %w", intent.Kind, err)
	}
	var text bytes.Buffer
	if err := r.text.Execute(&text, view); err != nil {
		return Rendered{}, fmt.Errorf("render %s text: %w", intent.Kind, err)
	}
	return Rendered{Subject: view.Subject, HTML: html.String(), Text: text.String()}, nil
}

type itemView struct {
	Name      string
	Quantity  int
	Price     string
	LineTotal string
}

type messageView struct {
	Subject             string
	Headline            string
	StoreName           string
	SupportEmail        string
	CustomerName        string
	OrderNumber         string
	StatusLabel         string
	PreviousStatusLabel string
	EstimatedDelivery   string
	Items               []itemView
	Total               string
	AddressLines        []string
	DonationMessage     string
	Year                int
}

func (r *Renderer) viewFor(intent Intent) messageView {
	view := messageView{
		Subject:      Subject(intent),
		Headline:     headline(intent),
		StoreName:    r.storeName,
		SupportEmail: r.supportEmail,
		CustomerName: intent.CustomerName,
		OrderNumber:  intent.OrderNumber,
		StatusLabel:  statusLabel(intent.NewStatus),
		Total:        money(intent.Total),
		Year:         r.now().Year(),
	}
	if intent.PreviousStatus != "" {
		view.PreviousStatusLabel = statusLabel(intent.PreviousStatus)
	}
	if intent.EstimatedDelivery != nil {
		view.EstimatedDelivery = intent.EstimatedDelivery.Format("Monday, January 2, 2006")
	}
	if intent.ShippingAddress != nil {
		view.AddressLines = intent.ShippingAddress.Lines()
	}
	if intent.DonationAmount != nil {
		view.Total = money(*intent.DonationAmount)
	}
	if intent.DonationMessage != nil {
		view.DonationMessage = strings.TrimSpace(*intent.DonationMessage)
	}
	for _, item := range intent.Items {
		view.Items = append(view.Items, itemView{
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     money(item.Price),
			LineTotal: money(pricing.LineTotal(item.Price, item.Quantity)),
		})
	}
	return view
}

func headline(intent Intent) string {
	switch intent.Kind {
	case enums.NotificationOrderConfirmation:
		return "Thank you for your order!"
	case enums.NotificationOrderShipped:
		return "Your order has shipped."
	case enums.NotificationOrderDelivered:
		return "Your order has been delivered."
	case enums.NotificationDonationReceipt:
		return "Thank you for your donation!"
	}
	switch intent.NewStatus {
	case enums.OrderStatusProcessing:
		return "We are preparing your order."
	case enums.OrderStatusCancelled:
		return "Your order has been cancelled. If you did not request this, please contact us."
	}
	return "The status of your order has changed."
}

func statusLabel(status enums.OrderStatus) string {
	if status == "" {
		return ""
	}
	s := string(status)
	return strings.ToUpper(s[:1]) + s[1:]
}

func money(amount decimal.Decimal) string {
	return "$" + pricing.Format(amount)
}
