package vetting

import (
	"testing"

	"portal-agent/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestRenderPreview_DefaultTemplate(t *testing.T) {
	vars := map[string]string{
		PlaceholderEventTitle:      "Summer School",
		PlaceholderParticipantName: "Ana",
		PlaceholderEventLocation:   "Lisbon",
		PlaceholderEventDates:      "1-5 July",
	}

	selected := RenderPreview(DefaultEmailTemplate(), vars, true)
	assert.Equal(t, "Application Status Update - Summer School", selected.Subject)
	assert.Contains(t, selected.Body, "Dear Ana,")
	assert.Contains(t, selected.Body, "travel to Lisbon (1-5 July)")
	assert.NotContains(t, selected.Body, "unable to offer")
	assert.NotContains(t, selected.Body, "{{")
	assert.NotContains(t, selected.Body, "\n\n\n")

	rejected := RenderPreview(DefaultEmailTemplate(), vars, false)
	assert.Contains(t, rejected.Body, "unable to offer you a place")
	assert.NotContains(t, rejected.Body, "pleased to inform")
}

func TestRenderPreview_UnknownPlaceholderKept(t *testing.T) {
	tpl := domain.EmailTemplate{Subject: "Results", Body: "Dear {{PARTICIPANT_NAME}}, see {{PORTAL_LINK}}"}

	got := RenderPreview(tpl, map[string]string{PlaceholderParticipantName: "Ana"}, true)
	assert.Equal(t, "Results", got.Subject)
	assert.Equal(t, "Dear Ana, see {{PORTAL_LINK}}", got.Body)
}

func TestRenderPreview_NoBlocks(t *testing.T) {
	tpl := domain.EmailTemplate{Subject: "Hi", Body: "Plain body"}

	assert.Equal(t, tpl, RenderPreview(tpl, nil, false))
}
