package dispatch

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"costume-portal/internal/core/domain/models"
)

// TemplateData is what every milestone template renders against.
type TemplateData struct {
	OrderNumber string
	StageName   string
	IsRevert    bool
	ShipDate    string
}

type renderedMessage struct {
	TemplateID string
	Subject    string
	Body       string
}

// TemplateRegistry holds the closed set of (stage, channel) templates.
type TemplateRegistry struct {
	subjects map[string]*template.Template
	bodies   map[string]*template.Template
}

func templateKey(stage models.Stage, ch models.Channel) string {
	return fmt.Sprintf("stage.%s.%s", stage, ch)
}

// stageLabel turns a stage name into display form ("first_fitting" ->
// "First Fitting").
func stageLabel(stage models.Stage) string {
	parts := strings.Split(string(stage), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

const (
	emailSubjectText = `Order {{.OrderNumber}}: {{if .IsRevert}}returned to{{else}}now in{{end}} {{.StageName}}`
	emailBodyText    = `Your costume order {{.OrderNumber}} has {{if .IsRevert}}been moved back to{{else}}reached{{end}} the {{.StageName}} stage.{{if .ShipDate}} Current estimated ship date: {{.ShipDate}}.{{end}}

You are receiving this because you subscribed to {{.StageName}} updates.`
	smsBodyText = `Order {{.OrderNumber}}: {{if .IsRevert}}back to{{else}}now in{{end}} {{.StageName}}.{{if .ShipDate}} Est. ship {{.ShipDate}}.{{end}}`
)

// NewTemplateRegistry builds the default template set covering every stage
// on both channels.
func NewTemplateRegistry() (*TemplateRegistry, error) {
	r := &TemplateRegistry{
		subjects: make(map[string]*template.Template),
		bodies:   make(map[string]*template.Template),
	}

	for _, stage := range models.StageSequence {
		emailKey := templateKey(stage, models.ChannelEmail)
		smsKey := templateKey(stage, models.ChannelSMS)

		subj, err := template.New(emailKey + ".subject").Parse(emailSubjectText)
		if err != nil {
			return nil, fmt.Errorf("parse subject template %s: %w", emailKey, err)
		}
		body, err := template.New(emailKey + ".body").Parse(emailBodyText)
		if err != nil {
			return nil, fmt.Errorf("parse body template %s: %w", emailKey, err)
		}
		smsBody, err := template.New(smsKey + ".body").Parse(smsBodyText)
		if err != nil {
			return nil, fmt.Errorf("parse body template %s: %w", smsKey, err)
		}

		r.subjects[emailKey] = subj
		r.bodies[emailKey] = body
		r.bodies[smsKey] = smsBody
	}

	return r, nil
}

// Render produces the message for a (stage, channel) pair. A missing
// template or execution error surfaces as ErrorRenderFailure.
func (r *TemplateRegistry) Render(stage models.Stage, ch models.Channel, data TemplateData) (renderedMessage, error) {
	key := templateKey(stage, ch)

	body, ok := r.bodies[key]
	if !ok {
		return renderedMessage{}, fmt.Errorf("%w: no template for %s", models.ErrorRenderFailure, key)
	}

	var bodyBuf bytes.Buffer
	if err := body.Execute(&bodyBuf, data); err != nil {
		return renderedMessage{}, fmt.Errorf("%w: %s: %v", models.ErrorRenderFailure, key, err)
	}

	msg := renderedMessage{
		TemplateID: key,
		Body:       bodyBuf.String(),
	}

	// SMS carries no subject line.
	if subj, ok := r.subjects[key]; ok {
		var subjBuf bytes.Buffer
		if err := subj.Execute(&subjBuf, data); err != nil {
			return renderedMessage{}, fmt.Errorf("%w: %s: %v", models.ErrorRenderFailure, key, err)
		}
		msg.Subject = subjBuf.String()
	}

	return msg, nil
}
