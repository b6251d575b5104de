package view

import (
	"strings"

	"rib/config"
	"rib/rewrite"
)

// cssBlock is a single selector with its declarations. Not a general CSS
// model, just enough to emit the generated stylesheets.
type cssBlock struct {
	selector string
	lines    []string
}

func (b *cssBlock) add(lines ...string) {
	b.lines = append(b.lines, lines...)
}

func renderCSS(blocks []cssBlock) string {
	var sb strings.Builder
	first := true
	for _, b := range blocks {
		if len(b.lines) == 0 {
			continue
		}
		if !first {
			sb.WriteString("\n")
		}
		first = false
		sb.WriteString(b.selector)
		sb.WriteString(" {\n")
		for _, line := range b.lines {
			sb.WriteString("\t")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

func sheetOf(style config.Style) *config.Stylesheet {
	if style.Sheet != nil {
		return style.Sheet
	}
	return &config.Stylesheet{}
}

func valueOr(v *config.StyleValue, fallback string) string {
	if v != nil {
		return v.Value
	}
	return fallback
}

// NavigationStylesheet renders the wrapper page stylesheet: a full-viewport
// frame with the hide-until-hover navigation bar at the bottom.
func NavigationStylesheet(style config.Style) string {

	sheet := sheetOf(style)

	body := cssBlock{selector: "body"}
	body.add("margin: 0;", "padding: 0;", "height: 100vh;", "width: 100vw;", "overflow: hidden;")
	if sheet.TextColor != nil {
		body.add("color: " + sheet.TextColor.Value + ";")
	}
	if sheet.BackgroundColor != nil {
		body.add("background-color: " + sheet.BackgroundColor.Value + ";")
	}

	frame := cssBlock{selector: "#" + FrameElementID}
	frame.add("border: none;", "height: 100%;", "width: 100%;")

	sidePosition, width := "5vh", "calc(100vw - calc(10vh + 2.5rem))"
	if sheet.MarginSize != nil {
		sidePosition = "calc(5vh + " + sheet.MarginSize.Value + ")"
		width = "calc(100vw - calc(10vh + 2.5rem + calc(2 * " + sheet.MarginSize.Value + ")))"
	}
	borderColor := valueOr(sheet.TextColor, "black")
	background := valueOr(sheet.BackgroundColor, "white")

	bar := cssBlock{selector: "#navigation"}
	bar.add(
		"position: fixed;",
		"bottom: 5vh;",
		"left: "+sidePosition+";",
		"right: "+sidePosition+";",
		"width: "+width+";",
		"padding: 1rem;",
		"border: 0.25rem solid "+borderColor+";",
		"border-radius: 2rem;",
		"background: "+background+";",
		"text-align: center;",
		"opacity: 0;",
		"transition: opacity 0.4s ease-out;",
	)

	hover := cssBlock{selector: "#navigation:hover"}
	hover.add("opacity: 1;")

	button := cssBlock{selector: ".navigation-button"}
	button.add(
		"padding: 0.1rem;",
		"border: 0.1rem solid "+borderColor+";",
		"border-radius: 0.2rem;",
		"text-decoration: none;",
	)

	return renderCSS([]cssBlock{body, frame, bar, hover, button, linkBlock(sheet), imageBlock(sheet)})
}

// IndexStylesheet renders the index page stylesheet.
func IndexStylesheet(style config.Style) string {

	sheet := sheetOf(style)

	body := cssBlock{selector: "body"}
	body.add("text-align: center;")
	if sheet.TextColor != nil {
		body.add("color: " + sheet.TextColor.Value + ";")
	}
	if sheet.BackgroundColor != nil {
		body.add("background-color: " + sheet.BackgroundColor.Value + ";")
	}
	if sheet.MarginSize != nil {
		body.add(
			"margin-left: "+sheet.MarginSize.Value+";",
			"margin-right: "+sheet.MarginSize.Value+";",
		)
	}

	table := cssBlock{selector: "table"}
	table.add("border-collapse: collapse;", "margin-left: auto;", "margin-right: auto;")

	cell := cssBlock{selector: "td"}
	cell.add("border: 1px solid "+valueOr(sheet.TextColor, "black")+";", "vertical-align: top;")

	list := cssBlock{selector: "ul"}
	list.add("text-align: left;")

	nonlinearMark := cssBlock{selector: ".nonlinear"}
	nonlinearMark.add("font-style: italic;")

	return renderCSS([]cssBlock{body, table, cell, list, nonlinearMark, linkBlock(sheet), imageBlock(sheet)})
}

func linkBlock(sheet *config.Stylesheet) cssBlock {
	b := cssBlock{selector: ":any-link"}
	if sheet.LinkColor != nil {
		b.add("color: " + sheet.LinkColor.Value + ";")
	}
	return b
}

func imageBlock(sheet *config.Stylesheet) cssBlock {
	b := cssBlock{selector: "img"}
	if sheet.LimitImages != nil && sheet.LimitImages.Value {
		b.add("max-height: 100vh;", "max-width: 100vw;")
	}
	return b
}

// SectionInjections resolves the style profile into the two CSS blocks the
// rewriter places around book-native styling.
func SectionInjections(style config.Style) []rewrite.Injection {

	sheet := style.Sheet
	if sheet == nil {
		return nil
	}

	groups := map[bool]*struct {
		body, para, link, img cssBlock
		freeform              string
	}{
		false: {body: cssBlock{selector: "body"}, para: cssBlock{selector: "p"}, link: cssBlock{selector: ":any-link"}, img: cssBlock{selector: "img"}},
		true:  {body: cssBlock{selector: "body"}, para: cssBlock{selector: "p"}, link: cssBlock{selector: ":any-link"}, img: cssBlock{selector: "img"}},
	}

	bodyProp := func(v *config.StyleValue, decl string) {
		if v != nil {
			groups[v.OverrideBook].body.add(decl + ": " + v.Value + ";")
		}
	}
	bodyProp(sheet.FontFamily, "font-family")
	bodyProp(sheet.FontSize, "font-size")
	bodyProp(sheet.TextColor, "color")
	bodyProp(sheet.BackgroundColor, "background-color")
	bodyProp(sheet.LineSpacing, "line-height")
	if v := sheet.MarginSize; v != nil {
		groups[v.OverrideBook].body.add("margin-left: "+v.Value+";", "margin-right: "+v.Value+";")
	}
	if v := sheet.MaxReadingWidth; v != nil {
		groups[v.OverrideBook].body.add("max-width: "+v.Value+";", "margin-left: auto;", "margin-right: auto;")
	}
	if v := sheet.ParagraphIndent; v != nil {
		groups[v.OverrideBook].para.add("text-indent: " + v.Value + ";")
	}
	if v := sheet.LinkColor; v != nil {
		groups[v.OverrideBook].link.add("color: " + v.Value + ";")
	}
	if v := sheet.LimitImages; v != nil && v.Value {
		groups[v.OverrideBook].img.add("max-height: 100vh;", "max-width: 100%;")
	}
	if v := sheet.InjectCSS; v != nil {
		groups[false].freeform = v.Value
	}
	if v := sheet.OverrideCSS; v != nil {
		groups[true].freeform = v.Value
	}

	var injections []rewrite.Injection
	for _, override := range []bool{false, true} {
		g := groups[override]
		css := renderCSS([]cssBlock{g.body, g.para, g.link, g.img})
		if len(g.freeform) > 0 {
			if len(css) > 0 {
				css += "\n"
			}
			css += g.freeform + "\n"
		}
		if len(css) > 0 {
			injections = append(injections, rewrite.Injection{CSS: css, OverrideBook: override})
		}
	}
	return injections
}
