package core_test

import (
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core"
)

func TestEmailMessage_Render(t *testing.T) {
	tc := core.TemplateContext{AppName: "Atelier", FrontendBaseURL: "https://app.atelier.test"}

	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantText []string
	}{
		{
			name: "invitation",
			msg: core.EmailMessage{
				TemplateName: "invitation",
				TemplateData: map[string]interface{}{
					"Name":      "Kim",
					"InvitedBy": "Ada Admin",
					"Link":      "https://app.atelier.test/setup-password?token=abc",
					"ExpiresAt": time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC),
				},
			},
			wantText: []string{"Hi Kim", "Ada Admin", "setup-password?token=abc", "4 March 2030", "The Atelier team"},
		},
		{
			name: "password_reset",
			msg: core.EmailMessage{
				TemplateName: "password_reset",
				TemplateData: map[string]interface{}{
					"Name":      "Sam",
					"Link":      "https://app.atelier.test/password-reset/uid/token",
					"ValidDays": 3,
				},
			},
			wantText: []string{"Hi Sam", "/password-reset/uid/token", "3 day(s)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			msg.To = []mail.Address{{Address: "someone@atelier.test"}}
			require.NoError(t, msg.Render(tc))

			assert.True(t, msg.HasContent())
			assert.NotEmpty(t, msg.HTMLContent)
			assert.Contains(t, msg.HTMLContent, "<p>")
			for _, want := range tt.wantText {
				assert.Contains(t, msg.TextContent, want)
			}
		})
	}

	t.Run("unknown template", func(t *testing.T) {
		msg := core.EmailMessage{TemplateName: "nope"}
		assert.Error(t, msg.Render(tc))
	})

	t.Run("plain body", func(t *testing.T) {
		msg := core.EmailMessage{BodyStr: "hello"}
		require.NoError(t, msg.Render(tc))
		assert.Equal(t, "hello", msg.TextContent)
		assert.Empty(t, strings.TrimSpace(msg.HTMLContent))
	})
}
