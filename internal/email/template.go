package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

const subjectPrefix = "[Fleet Maintenance]"

// Message is one rendered email.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

type severity struct {
	Label string
	Color string
}

var severities = map[models.AlertKind]severity{
	models.KindOverdue:             {Label: "OVERDUE", Color: "#dc2626"},
	models.KindUpcomingMaintenance: {Label: "UPCOMING", Color: "#d97706"},
	models.KindAlert:               {Label: "ALERT", Color: "#2563eb"},
}

type templateData struct {
	Alert       models.Alert
	Vehicle     *models.Vehicle
	Severity    severity
	Mileage     string
	ActionURL   string
	ActionLabel string
}

var htmlTmpl = htmltemplate.Must(htmltemplate.New("alert.html").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f3f4f6;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:24px auto;background:#ffffff;border-radius:8px;overflow:hidden;">
    <tr>
      <td style="background:#111827;color:#ffffff;padding:16px 24px;font-size:18px;font-weight:bold;">Fleet Maintenance</td>
    </tr>
    <tr>
      <td style="background:{{.Severity.Color}};color:#ffffff;padding:12px 24px;font-size:14px;font-weight:bold;letter-spacing:1px;">{{.Severity.Label}}</td>
    </tr>
    <tr>
      <td style="padding:24px;">
        <h2 style="margin:0 0 12px 0;color:#111827;">{{.Alert.Title}}</h2>
        <p style="margin:0 0 16px 0;color:#374151;line-height:1.5;">{{.Alert.Message}}</p>
        {{- if .Vehicle}}
        <table cellpadding="6" cellspacing="0" style="width:100%;border:1px solid #e5e7eb;border-radius:6px;font-size:14px;color:#374151;">
          <tr><td style="color:#6b7280;">Plate</td><td>{{.Vehicle.Plate}}</td></tr>
          <tr><td style="color:#6b7280;">VIN</td><td>{{.Vehicle.VIN}}</td></tr>
          <tr><td style="color:#6b7280;">Vehicle</td><td>{{.Vehicle.Year}} {{.Vehicle.Make}} {{.Vehicle.Model}}</td></tr>
          <tr><td style="color:#6b7280;">Mileage</td><td>{{.Mileage}} km</td></tr>
        </table>
        {{- end}}
        {{- if .ActionURL}}
        <p style="margin:24px 0 0 0;">
          <a href="{{.ActionURL}}" style="display:inline-block;background:{{.Severity.Color}};color:#ffffff;text-decoration:none;padding:10px 18px;border-radius:6px;font-weight:bold;">{{.ActionLabel}}</a>
        </p>
        {{- end}}
      </td>
    </tr>
    <tr>
      <td style="padding:12px 24px;background:#f9fafb;color:#9ca3af;font-size:12px;">You receive this email because you are a fleet administrator.</td>
    </tr>
  </table>
</body>
</html>
`))

var textTmpl = texttemplate.Must(texttemplate.New("alert.txt").Parse(`[{{.Severity.Label}}] {{.Alert.Title}}

{{.Alert.Message}}
{{if .Vehicle}}
Plate:   {{.Vehicle.Plate}}
VIN:     {{.Vehicle.VIN}}
Vehicle: {{.Vehicle.Year}} {{.Vehicle.Make}} {{.Vehicle.Model}}
Mileage: {{.Mileage}} km
{{end}}{{if .ActionURL}}
{{.ActionLabel}}: {{.ActionURL}}
{{end}}`))

// Renderer builds the branded message for an alert.
type Renderer struct {
	baseURL string
}

// NewRenderer links call-to-action buttons under baseURL.
func NewRenderer(baseURL string) *Renderer {
	return &Renderer{baseURL: strings.TrimRight(baseURL, "/")}
}

// Render produces subject, HTML and plain text for alert. vehicle may be nil.
func (r *Renderer) Render(alert models.Alert, vehicle *models.Vehicle) (Message, error) {
	sev, ok := severities[alert.Kind]
	if !ok {
		sev = severities[models.KindAlert]
	}
	data := templateData{Alert: alert, Vehicle: vehicle, Severity: sev}
	if vehicle != nil {
		data.Mileage = fmt.Sprintf("%.0f", vehicle.CurrentMileage)
	}
	if r.baseURL != "" {
		if vehicle != nil {
			data.ActionURL = fmt.Sprintf("%s/vehicles/%s", r.baseURL, vehicle.ID.Hex())
			data.ActionLabel = "View vehicle"
		} else {
			data.ActionURL = r.baseURL + "/notifications"
			data.ActionLabel = "Open notifications"
		}
	}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{
		Subject: fmt.Sprintf("%s %s", subjectPrefix, alert.Title),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
