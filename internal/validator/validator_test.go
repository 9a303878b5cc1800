package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge/internal/domain"
)

func validData() domain.DesignData {
	return domain.DesignData{
		domain.DataFieldText:  "Hello World",
		domain.DataFieldFont:  "Roboto-Regular",
		domain.DataFieldColor: "#FF5733",
	}
}

func TestRules_Validate(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		name        string
		productType domain.ProductType
		mutate      func(domain.DesignData)
		wantErr     string
	}{
		{"valid t-shirt", domain.ProductTypeTShirt, nil, ""},
		{"valid mug", domain.ProductTypeMug, nil, ""},
		{"valid poster", domain.ProductTypePoster, nil, ""},
		{"valid hoodie", domain.ProductTypeHoodie, nil, ""},
		{"valid tote bag", domain.ProductTypeToteBag, nil, ""},
		{
			"missing text", domain.ProductTypeTShirt,
			func(d domain.DesignData) { delete(d, domain.DataFieldText) },
			"missing required field",
		},
		{
			"missing font", domain.ProductTypeTShirt,
			func(d domain.DesignData) { delete(d, domain.DataFieldFont) },
			"missing required field",
		},
		{
			"missing color", domain.ProductTypeTShirt,
			func(d domain.DesignData) { delete(d, domain.DataFieldColor) },
			"missing required field",
		},
		{
			"whitespace text", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldText] = "   " },
			"text cannot be empty",
		},
		{
			"t-shirt text over 50", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldText] = strings.Repeat("a", 51) },
			"text too long",
		},
		{
			"t-shirt accepts 50 multibyte chars", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldText] = strings.Repeat("Ж", 50) },
			"",
		},
		{
			"t-shirt multibyte text over 50", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldText] = strings.Repeat("Ж", 51) },
			"text too long",
		},
		{
			"mug accepts 100 chars", domain.ProductTypeMug,
			func(d domain.DesignData) { d[domain.DataFieldText] = strings.Repeat("a", 100) },
			"",
		},
		{
			"mug text over 100", domain.ProductTypeMug,
			func(d domain.DesignData) { d[domain.DataFieldText] = strings.Repeat("a", 101) },
			"text too long",
		},
		{
			"poster accepts 200 chars", domain.ProductTypePoster,
			func(d domain.DesignData) { d[domain.DataFieldText] = strings.Repeat("a", 200) },
			"",
		},
		{
			"color without hash", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldColor] = "FF5733" },
			"invalid color format",
		},
		{
			"color too short", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldColor] = "#FFF" },
			"invalid color format",
		},
		{
			"color with invalid chars", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldColor] = "#GGHHII" },
			"invalid color format",
		},
		{
			"unknown font", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldFont] = "Comic-Sans" },
			"invalid font",
		},
		{
			"fontSize below t-shirt minimum", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldFontSize] = 11.0 },
			"fontSize must be between",
		},
		{
			"fontSize above t-shirt maximum", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldFontSize] = 73.0 },
			"fontSize must be between",
		},
		{
			"fontSize at t-shirt bounds", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldFontSize] = 72.0 },
			"",
		},
		{
			"mug allows larger fontSize", domain.ProductTypeMug,
			func(d domain.DesignData) { d[domain.DataFieldFontSize] = 144.0 },
			"",
		},
		{
			"poster allows up to 200", domain.ProductTypePoster,
			func(d domain.DesignData) { d[domain.DataFieldFontSize] = 200.0 },
			"",
		},
		{
			"non-numeric fontSize", domain.ProductTypeTShirt,
			func(d domain.DesignData) { d[domain.DataFieldFontSize] = "big" },
			"fontSize must be a number",
		},
		{
			"fontSize optional", domain.ProductTypeTShirt,
			func(d domain.DesignData) { delete(d, domain.DataFieldFontSize) },
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validData()
			if tt.mutate != nil {
				tt.mutate(data)
			}

			err := registry.Validate(data, tt.productType)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRules_TextLimitCountsCharacters(t *testing.T) {
	// The limit is in characters, not bytes, and so is the reported count.
	registry := NewRegistry()

	data := validData()
	data[domain.DataFieldText] = strings.Repeat("Ж", 60)

	err := registry.Validate(data, domain.ProductTypeTShirt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 60")
}

func TestRules_ValidateOrder(t *testing.T) {
	// Multiple broken rules report the first in check order: required
	// fields before text, text before color, color before font.
	registry := NewRegistry()

	data := domain.DesignData{
		domain.DataFieldText:  strings.Repeat("a", 500),
		domain.DataFieldFont:  "Comic-Sans",
		domain.DataFieldColor: "nope",
	}
	err := registry.Validate(data, domain.ProductTypeTShirt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text too long")
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry()

	for _, pt := range []domain.ProductType{
		domain.ProductTypeTShirt, domain.ProductTypeMug, domain.ProductTypePoster,
		domain.ProductTypeHoodie, domain.ProductTypeToteBag,
	} {
		s, err := registry.Get(pt)
		assert.NoError(t, err, pt)
		assert.NotNil(t, s, pt)
	}

	_, err := registry.Get(domain.ProductType("sticker"))
	assert.Equal(t, domain.EUNKNOWNPRODUCT, domain.ErrorCode(err))
}

// phoneCaseRules is a custom strategy for an extension product type.
type phoneCaseRules struct{}

func (phoneCaseRules) Validate(data domain.DesignData, productType domain.ProductType) error {
	if len(data.Text()) > 20 {
		return domain.Invalid("validator.phone-case", "text too long for phone-case")
	}
	return nil
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	phoneCase := domain.ProductType("phone-case")

	registry.Register(phoneCase, phoneCaseRules{})

	assert.NoError(t, registry.Validate(domain.DesignData{domain.DataFieldText: "short"}, phoneCase))
	err := registry.Validate(domain.DesignData{domain.DataFieldText: strings.Repeat("a", 21)}, phoneCase)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
