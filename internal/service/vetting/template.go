package vetting

import (
	"regexp"
	"strings"

	"portal-agent/internal/domain"
)

// Placeholders understood by the backend when it sends approval emails
const (
	PlaceholderEventTitle      = "EVENT_TITLE"
	PlaceholderParticipantName = "PARTICIPANT_NAME"
	PlaceholderEventLocation   = "EVENT_LOCATION"
	PlaceholderEventDates      = "EVENT_DATES"
)

const defaultSubject = "Application Status Update - {{EVENT_TITLE}}"

const defaultBody = `Dear {{PARTICIPANT_NAME}},

Thank you for your application to {{EVENT_TITLE}}.

{{#if_selected}}
We are pleased to inform you that you have been selected to participate. Details about travel to {{EVENT_LOCATION}} ({{EVENT_DATES}}) will follow shortly.
{{/if_selected}}
{{#if_not_selected}}
After careful consideration we are unable to offer you a place at this time. We appreciate your interest and hope to see you at a future event.
{{/if_not_selected}}

Kind regards,
The Event Team`

// DefaultEmailTemplate is used until a stored template exists for the event
func DefaultEmailTemplate() domain.EmailTemplate {
	return domain.EmailTemplate{Subject: defaultSubject, Body: defaultBody}
}

var (
	selectedBlock    = regexp.MustCompile(`(?s)\{\{#if_selected\}\}(.*?)\{\{/if_selected\}\}`)
	notSelectedBlock = regexp.MustCompile(`(?s)\{\{#if_not_selected\}\}(.*?)\{\{/if_not_selected\}\}`)
	placeholder      = regexp.MustCompile(`\{\{([A-Z_]+)\}\}`)
	blankRun         = regexp.MustCompile(`\n{3,}`)
)

// RenderPreview expands a template the way the backend will for one
// participant. Unknown placeholders are left in place so the operator can
// spot them.
func RenderPreview(tpl domain.EmailTemplate, vars map[string]string, selected bool) domain.EmailTemplate {
	return domain.EmailTemplate{
		Subject: renderText(tpl.Subject, vars, selected),
		Body:    renderText(tpl.Body, vars, selected),
	}
}

func renderText(text string, vars map[string]string, selected bool) string {
	keep := func(on bool) func(string) string {
		return func(block string) string {
			if !on {
				return ""
			}
			inner := selectedBlock.FindStringSubmatch(block)
			if inner == nil {
				inner = notSelectedBlock.FindStringSubmatch(block)
			}
			return strings.Trim(inner[1], "\n")
		}
	}

	text = selectedBlock.ReplaceAllStringFunc(text, keep(selected))
	text = notSelectedBlock.ReplaceAllStringFunc(text, keep(!selected))
	text = placeholder.ReplaceAllStringFunc(text, func(token string) string {
		name := placeholder.FindStringSubmatch(token)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
	return blankRun.ReplaceAllString(text, "\n\n")
}
