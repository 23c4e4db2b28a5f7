package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_SubstitutesVariables(t *testing.T) {
	vars := map[string]any{
		"client_name": "Acme Corp",
		"case_number": 42,
	}

	out := Render("Case {{case_number}} for {{client_name}}", vars)
	assert.Equal(t, "Case 42 for Acme Corp", out)
}

func TestRender_UnresolvedTokenLeftLiteral(t *testing.T) {
	out := Render("Hello {{missing}}", map[string]any{"present": "x"})
	assert.Equal(t, "Hello {{missing}}", out)

	out = Render("Hello {{missing}}", nil)
	assert.Equal(t, "Hello {{missing}}", out)
}

func TestRender_DottedLookup(t *testing.T) {
	vars := map[string]any{
		"client": map[string]any{
			"name": "Acme Corp",
		},
	}

	out := Render("For {{client.name}}", vars)
	assert.Equal(t, "For Acme Corp", out)

	// Traversal through a non-map leaves the token literal.
	out = Render("{{client.name.first}}", vars)
	assert.Equal(t, "{{client.name.first}}", out)
}

func TestRender_WhitespaceInsideToken(t *testing.T) {
	out := Render("{{ client_name }}", map[string]any{"client_name": "Acme"})
	assert.Equal(t, "Acme", out)
}

func TestRender_NonScalarValuesAreJSONEncoded(t *testing.T) {
	vars := map[string]any{
		"recipients": []any{"a@example.com", "b@example.com"},
	}

	out := Render("{{recipients}}", vars)
	assert.Equal(t, `["a@example.com","b@example.com"]`, out)
}

func TestRenderConfig_RecursesThroughConfig(t *testing.T) {
	config := map[string]any{
		"subject": "Case {{case_number}}",
		"nested": map[string]any{
			"message": "Dear {{client_name}}",
		},
		"recipients": []any{"{{client_email}}", "ops@example.com"},
		"retries":    3,
	}
	vars := map[string]any{
		"case_number":  "C-7",
		"client_name":  "Acme",
		"client_email": "legal@acme.example",
	}

	out := RenderConfig(config, vars)

	assert.Equal(t, "Case C-7", out["subject"])
	assert.Equal(t, "Dear Acme", out["nested"].(map[string]any)["message"])
	assert.Equal(t, "legal@acme.example", out["recipients"].([]any)[0])
	assert.Equal(t, 3, out["retries"])
}

func TestHasTokens(t *testing.T) {
	assert.True(t, HasTokens("x {{y}}"))
	assert.False(t, HasTokens("plain text"))
	assert.False(t, HasTokens("{not a token}"))
}
