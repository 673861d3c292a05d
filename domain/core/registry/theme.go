package registry

import "canvas-engine/domain/core/entities"

// Theme supplies default colors for nodes that leave a color unset.
type Theme struct {
	Name     string
	defaults map[entities.Variant]entities.Colors
	fallback entities.Colors
}

// Defaults returns the theme colors for a variant.
func (t Theme) Defaults(v entities.Variant) entities.Colors {
	if c, ok := t.defaults[v]; ok {
		return c
	}
	return t.fallback
}

// LightTheme is the default theme.
func LightTheme() Theme {
	return Theme{
		Name: "light",
		defaults: map[entities.Variant]entities.Colors{
			entities.VariantSticky:  {Fill: entities.StickyPalette[0], Border: "transparent", Text: "#1e1e1e"},
			entities.VariantShape:   {Fill: "#ffffff", Border: "#1e1e1e", Text: "#1e1e1e"},
			entities.VariantText:    {Fill: "transparent", Border: "transparent", Text: "#1e1e1e"},
			entities.VariantFrame:   {Fill: "#ffffff", Border: "#d0d0d0", Text: "#5c5c5c"},
			entities.VariantComment: {Fill: "#fff4d6", Border: "#f0c36d", Text: "#1e1e1e"},
			entities.VariantDoodle:  {Fill: "#1e1e1e"},
		},
		fallback: entities.Colors{Fill: "transparent", Border: "transparent", Text: "#1e1e1e"},
	}
}

// DarkTheme inverts the neutral defaults. Sticky fills stay on the palette.
func DarkTheme() Theme {
	return Theme{
		Name: "dark",
		defaults: map[entities.Variant]entities.Colors{
			entities.VariantSticky:  {Fill: entities.StickyPalette[0], Border: "transparent", Text: "#1e1e1e"},
			entities.VariantShape:   {Fill: "#2b2b2b", Border: "#e6e6e6", Text: "#f5f5f5"},
			entities.VariantText:    {Fill: "transparent", Border: "transparent", Text: "#f5f5f5"},
			entities.VariantFrame:   {Fill: "#1f1f1f", Border: "#3a3a3a", Text: "#bdbdbd"},
			entities.VariantComment: {Fill: "#3d3523", Border: "#8a6d2f", Text: "#f5f5f5"},
			entities.VariantDoodle:  {Fill: "#f5f5f5"},
		},
		fallback: entities.Colors{Fill: "transparent", Border: "transparent", Text: "#f5f5f5"},
	}
}

// ThemeByName resolves a configured theme name, falling back to light.
func ThemeByName(name string) Theme {
	if name == "dark" {
		return DarkTheme()
	}
	return LightTheme()
}
