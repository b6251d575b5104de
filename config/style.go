package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// StyleValue is a single resolved style property: CSS value plus a flag
// deciding whether it wins over book-native styling.
type StyleValue struct {
	Value        string `yaml:"value" validate:"required"`
	OverrideBook bool   `yaml:"override_book"`
}

// StyleFlag is a boolean style property with the same override semantics.
type StyleFlag struct {
	Value        bool `yaml:"value"`
	OverrideBook bool `yaml:"override_book"`
}

// Stylesheet is one named style profile. The property vocabulary is closed on
// purpose: unknown keys are rejected while decoding (strict yaml), not
// discovered at lookup time. Absent properties inject nothing.
type Stylesheet struct {
	FontFamily      *StyleValue `yaml:"font_family,omitempty"`
	FontSize        *StyleValue `yaml:"font_size,omitempty"`
	TextColor       *StyleValue `yaml:"text_color,omitempty"`
	LinkColor       *StyleValue `yaml:"link_color,omitempty"`
	BackgroundColor *StyleValue `yaml:"background_color,omitempty"`
	LineSpacing     *StyleValue `yaml:"line_spacing,omitempty"`
	ParagraphIndent *StyleValue `yaml:"paragraph_indent,omitempty"`
	MarginSize      *StyleValue `yaml:"margin_size,omitempty"`
	MaxReadingWidth *StyleValue `yaml:"max_reading_width,omitempty"`
	LimitImages     *StyleFlag  `yaml:"limit_images_to_viewport,omitempty"`

	// Freeform CSS injected verbatim, distinguished by precedence relative to
	// book-native styling: InjectCSS goes before it, OverrideCSS after.
	InjectCSS   *StyleValue `yaml:"inject_css,omitempty"`
	OverrideCSS *StyleValue `yaml:"override_css,omitempty"`
}

// cssProperties maps declaration names to single-value properties in a stable
// order, used both for validation and for identity hashing.
func (s *Stylesheet) cssProperties() map[string]*StyleValue {
	return map[string]*StyleValue{
		"font-family":      s.FontFamily,
		"font-size":        s.FontSize,
		"color":            s.TextColor,
		"link-color":       s.LinkColor,
		"background-color": s.BackgroundColor,
		"line-height":      s.LineSpacing,
		"text-indent":      s.ParagraphIndent,
		"margin":           s.MarginSize,
		"max-width":        s.MaxReadingWidth,
	}
}

// Validate checks that every set property carries a parseable CSS value.
// Called once at configuration load, before any materialization starts.
func (s *Stylesheet) Validate() error {
	for prop, v := range s.cssProperties() {
		if v == nil {
			continue
		}
		if strings.ContainsAny(v.Value, "{};") {
			return fmt.Errorf("property %s: value %q must be a single declaration value", prop, v.Value)
		}
		if err := parseCSS(prop + ":" + v.Value); err != nil {
			return fmt.Errorf("property %s: %w", prop, err)
		}
	}
	if s.InjectCSS != nil {
		if err := parseCSS(s.InjectCSS.Value); err != nil {
			return fmt.Errorf("property inject_css: %w", err)
		}
	}
	if s.OverrideCSS != nil {
		if err := parseCSS(s.OverrideCSS.Value); err != nil {
			return fmt.Errorf("property override_css: %w", err)
		}
	}
	return nil
}

// parseCSS runs the input through css parser in inline (declaration list)
// mode rejecting anything it cannot make sense of.
func parseCSS(input string) error {
	p := css.NewParser(parse.NewInputString(input), true)
	for {
		gt, _, _ := p.Next()
		if gt == css.ErrorGrammar {
			if err := p.Err(); err != io.EOF {
				return fmt.Errorf("unparseable CSS: %w", err)
			}
			return nil
		}
	}
}

// MergeStylesheets layers set properties of override on top of base. Either
// side may be nil, a nil result means no styling at all.
func MergeStylesheets(base, override *Stylesheet) *Stylesheet {
	if override == nil {
		return base
	}
	var merged Stylesheet
	if base != nil {
		merged = *base
	}
	if override.FontFamily != nil {
		merged.FontFamily = override.FontFamily
	}
	if override.FontSize != nil {
		merged.FontSize = override.FontSize
	}
	if override.TextColor != nil {
		merged.TextColor = override.TextColor
	}
	if override.LinkColor != nil {
		merged.LinkColor = override.LinkColor
	}
	if override.BackgroundColor != nil {
		merged.BackgroundColor = override.BackgroundColor
	}
	if override.LineSpacing != nil {
		merged.LineSpacing = override.LineSpacing
	}
	if override.ParagraphIndent != nil {
		merged.ParagraphIndent = override.ParagraphIndent
	}
	if override.MarginSize != nil {
		merged.MarginSize = override.MarginSize
	}
	if override.MaxReadingWidth != nil {
		merged.MaxReadingWidth = override.MaxReadingWidth
	}
	if override.LimitImages != nil {
		merged.LimitImages = override.LimitImages
	}
	if override.InjectCSS != nil {
		merged.InjectCSS = override.InjectCSS
	}
	if override.OverrideCSS != nil {
		merged.OverrideCSS = override.OverrideCSS
	}
	return &merged
}

// Style is the fully resolved per-open styling request: profile content plus
// rendition shape flags. It determines the materialized rendition identity.
type Style struct {
	Name             string
	IncludeIndex     bool
	InjectNavigation bool
	Sheet            *Stylesheet // nil for raw rendition
}

// RawStyle opens the extracted book untouched: no index, no navigation
// wrapper, no styling.
func RawStyle() Style {
	return Style{Name: "raw"}
}

func (s *Style) Raw() bool {
	return s.Sheet == nil && !s.IncludeIndex && !s.InjectNavigation
}

// ID returns a stable identifier for this style used to name rendition
// directories and recorded in the library index as last used stylesheet id.
func (s *Style) ID() string {
	if s.Raw() {
		return "raw"
	}
	h := sha256.New()
	fmt.Fprintf(h, "index=%t\nnav=%t\n", s.IncludeIndex, s.InjectNavigation)
	if s.Sheet != nil {
		props := s.Sheet.cssProperties()
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if v := props[name]; v != nil {
				fmt.Fprintf(h, "%s=%s/%t\n", name, v.Value, v.OverrideBook)
			}
		}
		if v := s.Sheet.LimitImages; v != nil {
			fmt.Fprintf(h, "limit-images=%t/%t\n", v.Value, v.OverrideBook)
		}
		if v := s.Sheet.InjectCSS; v != nil {
			fmt.Fprintf(h, "inject=%s\n", v.Value)
		}
		if v := s.Sheet.OverrideCSS; v != nil {
			fmt.Fprintf(h, "override=%s\n", v.Value)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
