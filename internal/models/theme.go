package models

// Theme mode values.
const (
	ModeLight  = "light"
	ModeDark   = "dark"
	ModeSystem = "system"
)

// Corner radius presets.
const (
	RadiusNone   = "none"
	RadiusSmall  = "small"
	RadiusMedium = "medium"
	RadiusLarge  = "large"
	RadiusFull   = "full"
)

// Font presets.
const (
	FontSans    = "sans"
	FontSerif   = "serif"
	FontMono    = "mono"
	FontRounded = "rounded"
)

var palettes = map[string]struct{}{
	"classic": {}, "midnight": {}, "forest": {}, "sunset": {},
	"ocean": {}, "rose": {}, "mono": {},
}

var (
	modes = map[string]struct{}{ModeLight: {}, ModeDark: {}, ModeSystem: {}}
	radii = map[string]struct{}{RadiusNone: {}, RadiusSmall: {}, RadiusMedium: {}, RadiusLarge: {}, RadiusFull: {}}
	fonts = map[string]struct{}{FontSans: {}, FontSerif: {}, FontMono: {}, FontRounded: {}}
)

// Theme selects how a page renders: color mode, named palette, corner
// radius, and font family. Rendering itself happens in clients; the
// document only carries the selection.
type Theme struct {
	Mode    string `json:"mode"`
	Palette string `json:"palette"`
	Radius  string `json:"radius"`
	Font    string `json:"font"`
}

// DefaultTheme is applied to every newly created page.
func DefaultTheme() Theme {
	return Theme{
		Mode:    ModeSystem,
		Palette: "classic",
		Radius:  RadiusMedium,
		Font:    FontSans,
	}
}

func (t Theme) validate() error {
	if _, ok := modes[t.Mode]; !ok {
		return invalidf("theme.mode", "unknown mode %q", t.Mode)
	}
	if _, ok := palettes[t.Palette]; !ok {
		return invalidf("theme.palette", "unknown palette %q", t.Palette)
	}
	if _, ok := radii[t.Radius]; !ok {
		return invalidf("theme.radius", "unknown radius %q", t.Radius)
	}
	if _, ok := fonts[t.Font]; !ok {
		return invalidf("theme.font", "unknown font %q", t.Font)
	}
	return nil
}
