package media

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultForceStyle is used for burned subtitles when no style is set.
const defaultForceStyle = "FontSize=24,PrimaryColour=&H00FFFFFF"

// SubtitleStyle styles burned-in subtitles. Soft subtitle streams are styled
// by the player and ignore it.
type SubtitleStyle struct {
	// FontName is a font family known to libass, e.g. "Arial".
	FontName string `yaml:"font_name"`

	// FontSize is in libass script pixels. Zero keeps the default.
	FontSize int `yaml:"font_size"`

	// Color is the text colour as #RRGGBB.
	Color string `yaml:"color"`
}

// IsZero reports whether no style field is set.
func (s SubtitleStyle) IsZero() bool {
	return s.FontName == "" && s.FontSize == 0 && s.Color == ""
}

// Validate checks the font size and colour.
func (s SubtitleStyle) Validate() error {
	if s.FontSize < 0 {
		return fmt.Errorf("media: subtitle style: font size %d must not be negative", s.FontSize)
	}
	if s.Color != "" {
		if _, err := assColor(s.Color); err != nil {
			return err
		}
	}
	if strings.ContainsAny(s.FontName, ",'") {
		return fmt.Errorf("media: subtitle style: font name %q must not contain commas or quotes", s.FontName)
	}
	return nil
}

// ForceStyle renders s as the subtitles filter's force_style value.
func (s SubtitleStyle) ForceStyle() string {
	if s.IsZero() {
		return defaultForceStyle
	}
	var parts []string
	if s.FontName != "" {
		parts = append(parts, "FontName="+s.FontName)
	}
	if s.FontSize > 0 {
		parts = append(parts, "FontSize="+strconv.Itoa(s.FontSize))
	}
	if s.Color != "" {
		c, err := assColor(s.Color)
		if err != nil {
			c = "&H00FFFFFF"
		}
		parts = append(parts, "PrimaryColour="+c)
	}
	return strings.Join(parts, ",")
}

// assColor converts #RRGGBB to the ASS &HAABBGGRR form with full opacity.
func assColor(hex string) (string, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	v, err := strconv.ParseUint(h, 16, 32)
	if len(h) != 6 || err != nil {
		return "", fmt.Errorf("media: subtitle style: colour %q is not #RRGGBB", hex)
	}
	r, g, b := v>>16, (v>>8)&0xff, v&0xff
	return fmt.Sprintf("&H00%02X%02X%02X", b, g, r), nil
}
