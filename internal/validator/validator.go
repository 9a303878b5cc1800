// Package validator implements per-product-type design payload validation.
//
// Each product type maps to a Strategy bounding acceptable payloads. The
// registry is an open extension point: new product types register their own
// strategy without touching existing ones.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/printforge/printforge/internal/domain"
)

// AllowedFonts is the fixed whitelist of font names accepted in payloads.
var AllowedFonts = []string{
	"Bebas-Bold",
	"Montserrat-Regular",
	"Montserrat-Bold",
	"Pacifico-Regular",
	"Roboto-Regular",
}

var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Strategy validates a design payload for one family of product types.
type Strategy interface {
	Validate(data domain.DesignData, productType domain.ProductType) error
}

// =============================================================================
// Rule Strategy
// =============================================================================

// Rules is a Strategy parameterized by per-product bounds.
//
// Rules are checked in a fixed order so the first broken rule is
// deterministic: required fields, text, color, font, then fontSize.
type Rules struct {
	MaxTextLength int
	MinFontSize   float64
	MaxFontSize   float64
}

// Validate checks the payload against the product's rules. It fails with a
// domain validation error carrying the first broken rule.
func (r Rules) Validate(data domain.DesignData, productType domain.ProductType) error {
	op := "validator." + productType.String()

	for _, field := range []string{domain.DataFieldText, domain.DataFieldFont, domain.DataFieldColor} {
		if _, ok := data[field]; !ok {
			return domain.Invalid(op, fmt.Sprintf("missing required field for %s: %s", productType, field))
		}
	}

	text := data.Text()
	if strings.TrimSpace(text) == "" {
		return domain.Invalid(op, "text cannot be empty")
	}
	if n := utf8.RuneCountInString(text); n > r.MaxTextLength {
		return domain.Invalid(op, fmt.Sprintf(
			"text too long for %s: maximum %d characters, got %d",
			productType, r.MaxTextLength, n,
		))
	}

	color := data.Color()
	if !hexColorRe.MatchString(color) {
		return domain.Invalid(op, fmt.Sprintf("invalid color format (expected #RRGGBB): %s", color))
	}

	font := data.Font()
	if !fontAllowed(font) {
		return domain.Invalid(op, fmt.Sprintf(
			"invalid font: %s (allowed: %s)", font, strings.Join(AllowedFonts, ", "),
		))
	}

	if raw, ok := data[domain.DataFieldFontSize]; ok {
		size, numeric := data.FontSize()
		if !numeric {
			return domain.Invalid(op, fmt.Sprintf("fontSize must be a number, got %T", raw))
		}
		if size < r.MinFontSize || size > r.MaxFontSize {
			return domain.Invalid(op, fmt.Sprintf(
				"fontSize must be between %g and %g, got %g", r.MinFontSize, r.MaxFontSize, size,
			))
		}
	}

	return nil
}

func fontAllowed(font string) bool {
	for _, f := range AllowedFonts {
		if f == font {
			return true
		}
	}
	return false
}

// Per-product rule sets. Hoodies and tote bags share the t-shirt print
// area constraints; mugs wrap around and allow more text; posters are the
// most permissive.
var (
	TShirtRules = Rules{MaxTextLength: 50, MinFontSize: 12, MaxFontSize: 72}
	MugRules    = Rules{MaxTextLength: 100, MinFontSize: 8, MaxFontSize: 144}
	PosterRules = Rules{MaxTextLength: 200, MinFontSize: 8, MaxFontSize: 200}
)

// =============================================================================
// Registry
// =============================================================================

// Registry maps product types to validation strategies. Safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies map[domain.ProductType]Strategy
}

// NewRegistry returns a registry seeded with the built-in product types.
func NewRegistry() *Registry {
	return &Registry{
		strategies: map[domain.ProductType]Strategy{
			domain.ProductTypeTShirt:  TShirtRules,
			domain.ProductTypeHoodie:  TShirtRules,
			domain.ProductTypeToteBag: TShirtRules,
			domain.ProductTypeMug:     MugRules,
			domain.ProductTypePoster:  PosterRules,
		},
	}
}

// Get returns the strategy for a product type, or an unknown-product-type
// error if none is registered.
func (r *Registry) Get(productType domain.ProductType) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[productType]
	if !ok {
		return nil, domain.UnknownProductType("validator.get", productType.String())
	}
	return s, nil
}

// Register adds or replaces the strategy for a product type.
func (r *Registry) Register(productType domain.ProductType, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[productType] = s
}

// Validate looks up the product's strategy and applies it. Satisfies
// domain.PayloadValidator so the registry can back entity self-validation.
func (r *Registry) Validate(data domain.DesignData, productType domain.ProductType) error {
	s, err := r.Get(productType)
	if err != nil {
		return err
	}
	return s.Validate(data, productType)
}
