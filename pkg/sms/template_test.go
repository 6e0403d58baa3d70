package sms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	t.Run("should register a default template per lane", func(t *testing.T) {
		for _, lane := range Lanes {
			template, ok := LookupTemplate(defaultTemplateKey(lane))

			require.True(t, ok, string(lane))
			assert.Equal(t, lane, template.Lane)
		}
	})

	t.Run("should carry opt-out language on every marketing template", func(t *testing.T) {
		for _, template := range Templates() {
			if template.Lane != LaneMarketing {
				assert.False(t, template.RequiresStop, template.Key)
				continue
			}
			assert.True(t, template.RequiresStop, template.Key)
			assert.True(t, strings.HasSuffix(template.Body, stopLanguage), template.Key)
		}
	})

	t.Run("should keep transactional templates free of promotional language", func(t *testing.T) {
		for _, template := range Templates() {
			if template.Lane == LaneTransactional {
				assert.Empty(t, DetectPromotionalKeywords(template.Body), template.Key)
			}
		}
	})

	t.Run("should list templates ordered by key", func(t *testing.T) {
		templates := Templates()

		require.NotEmpty(t, templates)
		for i := 1; i < len(templates); i++ {
			assert.Less(t, templates[i-1].Key, templates[i].Key)
		}
	})
}

func TestInterpolate(t *testing.T) {
	t.Run("should replace every placeholder", func(t *testing.T) {
		body, unresolved := Interpolate("Hi {{name}}, day {{ day }} of {{name}}", map[string]string{"name": "Ana", "day": "3"})

		assert.Equal(t, "Hi Ana, day 3 of Ana", body)
		assert.Empty(t, unresolved)
	})

	t.Run("should report missing variables sorted and once", func(t *testing.T) {
		body, unresolved := Interpolate("{{b}} {{a}} {{b}}", map[string]string{})

		assert.Equal(t, "{{b}} {{a}} {{b}}", body)
		assert.Equal(t, []string{"a", "b"}, unresolved)
	})

	t.Run("should not interpolate placeholder syntax inside values", func(t *testing.T) {
		body, unresolved := Interpolate("{{message}}", map[string]string{"message": "{{secret}}"})

		assert.Equal(t, "{{secret}}", body)
		assert.Empty(t, unresolved)
	})

	t.Run("should list placeholders in order of appearance", func(t *testing.T) {
		assert.Equal(t, []string{"productName", "dropLink"}, Placeholders("{{productName}} {{dropLink}} {{productName}}"))
		assert.Empty(t, Placeholders("no variables"))
	})
}

func TestDetectPromotionalKeywords(t *testing.T) {
	assert.Equal(t, []string{"% off"}, DetectPromotionalKeywords("Get 50% OFF today"))
	assert.ElementsMatch(t, []string{"flash sale", "sale", "shop now"}, DetectPromotionalKeywords("Flash Sale! Shop Now"))
	assert.Empty(t, DetectPromotionalKeywords("Your payout of $42.00 was sent."))
	// substring match: names are not exempt
	assert.Equal(t, []string{"sale"}, DetectPromotionalKeywords("Hi Rosalee, your challenge ends tonight."))
}
