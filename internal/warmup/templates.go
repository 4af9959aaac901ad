package warmup

import (
	"fmt"
	"sync"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/osteele/liquid"
)

// emailTemplate is a subject/body pair in Liquid syntax.
type emailTemplate struct {
	Subject string
	Body    string
}

// Warmup sends go to seed contacts, so content only needs to look organic,
// not convert. Variables: first_name, company, domain, sender_name, week.
var contentTemplates = map[domain.ContentType][]emailTemplate{
	domain.ContentIntroduction: {
		{
			Subject: "Quick introduction from {{ sender_name }}",
			Body:    "Hi {{ first_name | default: \"there\" }},\n\nI wanted to reach out and introduce myself. I work with the team at {{ domain }} and thought it would be good to connect.\n\nBest,\n{{ sender_name }}",
		},
		{
			Subject: "Hello from {{ domain }}",
			Body:    "Hi {{ first_name | default: \"there\" }},\n\nHope your week is going well. We're getting set up at {{ domain }} and I wanted to say hello{% if company != \"\" %} to everyone at {{ company }}{% endif %}.\n\nThanks,\n{{ sender_name }}",
		},
	},
	domain.ContentFollowUp: {
		{
			Subject: "Following up, {{ first_name | default: \"hi again\" }}",
			Body:    "Hi {{ first_name | default: \"there\" }},\n\nJust following up on my earlier note. Let me know if there's a good time to talk this week.\n\nBest,\n{{ sender_name }}",
		},
		{
			Subject: "Re: checking in",
			Body:    "Hi {{ first_name | default: \"there\" }},\n\nCircling back in case my last message got buried. Happy to share more whenever works for you.\n\nThanks,\n{{ sender_name }}",
		},
	},
	domain.ContentNewsletter: {
		{
			Subject: "{{ domain }} update, week {{ week }}",
			Body:    "Hi {{ first_name | default: \"there\" }},\n\nHere's a short update on what we've been working on at {{ domain }} this week. More to come soon.\n\nBest,\n{{ sender_name }}",
		},
	},
	domain.ContentPromotional: {
		{
			Subject: "Something new from {{ domain }}",
			Body:    "Hi {{ first_name | default: \"there\" }},\n\nWe just launched something I think {% if company != \"\" %}{{ company }}{% else %}you{% endif %} might find useful. Reply if you'd like the details.\n\nBest,\n{{ sender_name }}",
		},
	},
}

// TemplateRenderer renders warmup email templates with Liquid, caching
// parsed templates by source string.
type TemplateRenderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateRenderer creates a renderer with a fresh Liquid engine.
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{engine: liquid.NewEngine()}
}

// Render renders one template source with the given bindings.
func (r *TemplateRenderer) Render(source string, bindings map[string]interface{}) (string, error) {
	var tpl *liquid.Template
	if cached, ok := r.cache.Load(source); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := r.engine.ParseString(source)
		if err != nil {
			return "", fmt.Errorf("parse template: %w", err)
		}
		r.cache.Store(source, parsed)
		tpl = parsed
	}

	out, err := tpl.Render(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return string(out), nil
}

// RenderEmail picks the idx-th template variant for a content type (modulo
// the variant count) and renders subject and body.
func (r *TemplateRenderer) RenderEmail(ct domain.ContentType, idx int, bindings map[string]interface{}) (subject, body string, err error) {
	variants, ok := contentTemplates[ct]
	if !ok || len(variants) == 0 {
		return "", "", fmt.Errorf("no templates for content type %q", ct)
	}
	t := variants[idx%len(variants)]
	if subject, err = r.Render(t.Subject, bindings); err != nil {
		return "", "", err
	}
	if body, err = r.Render(t.Body, bindings); err != nil {
		return "", "", err
	}
	return subject, body, nil
}
