package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"rib/book"
	"rib/config"
	"rib/library"
	"rib/state"
)

func openFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "browser", Aliases: []string{"b"}, Usage: "`COMMAND` to open book with instead of the system default"},
		&cli.BoolFlag{Name: "raw", Aliases: []string{"r"}, Usage: "open raw book without adding index or navigation or styling"},
		&cli.BoolFlag{Name: "include-index", Aliases: []string{"i"}, Usage: "include index page when opening book"},
		&cli.BoolFlag{Name: "inject-navigation", Aliases: []string{"n"}, Usage: "inject navigation wrappers when opening book"},
		&cli.StringSliceFlag{Name: "stylesheet", Aliases: []string{"S"}, Usage: "stylesheet `NAME`, as defined in configuration, to open book with (may repeat)"},

		&cli.StringFlag{Name: "font-family", Usage: "font-family `VALUE` for book body"},
		&cli.StringFlag{Name: "font-size", Usage: "font-size `VALUE` for book body"},
		&cli.StringFlag{Name: "text-color", Usage: "color `VALUE` for book text"},
		&cli.StringFlag{Name: "link-color", Usage: "color `VALUE` for book links"},
		&cli.StringFlag{Name: "background-color", Usage: "background-color `VALUE` for book body"},
		&cli.StringFlag{Name: "margin-size", Usage: "margin-left and margin-right `VALUE` for book body"},
		&cli.BoolFlag{Name: "limit-images", Usage: "limit book images to the viewport"},

		&cli.BoolFlag{Name: "font-family-override", Usage: "supplied font family overrides book's own"},
		&cli.BoolFlag{Name: "font-size-override", Usage: "supplied font size overrides book's own"},
		&cli.BoolFlag{Name: "text-color-override", Usage: "supplied text color overrides book's own"},
		&cli.BoolFlag{Name: "link-color-override", Usage: "supplied link color overrides book's own"},
		&cli.BoolFlag{Name: "background-color-override", Usage: "supplied background color overrides book's own"},
		&cli.BoolFlag{Name: "margin-size-override", Usage: "supplied margin size overrides book's own"},
		&cli.BoolFlag{Name: "limit-images-override", Usage: "supplied image limit overrides book's own sizing"},
	}
}

// styleOverrides collects individual style properties from the command line
// into a stylesheet layered over any named profile.
func styleOverrides(cmd *cli.Command) *config.Stylesheet {

	var (
		sheet config.Stylesheet
		set   bool
	)
	value := func(name string) *config.StyleValue {
		if !cmd.IsSet(name) {
			return nil
		}
		set = true
		return &config.StyleValue{Value: cmd.String(name), OverrideBook: cmd.Bool(name + "-override")}
	}
	sheet.FontFamily = value("font-family")
	sheet.FontSize = value("font-size")
	sheet.TextColor = value("text-color")
	sheet.LinkColor = value("link-color")
	sheet.BackgroundColor = value("background-color")
	sheet.MarginSize = value("margin-size")
	if cmd.IsSet("limit-images") {
		set = true
		sheet.LimitImages = &config.StyleFlag{Value: cmd.Bool("limit-images"), OverrideBook: cmd.Bool("limit-images-override")}
	}
	if !set {
		return nil
	}
	return &sheet
}

// resolveStyles turns command line and configuration into the list of styles
// each book is opened with.
func resolveStyles(cmd *cli.Command, cfg *config.Config) ([]config.Style, error) {

	if cmd.Bool("raw") {
		return []config.Style{config.RawStyle()}, nil
	}

	includeIndex := cfg.Viewer.IncludeIndex
	if cmd.IsSet("include-index") {
		includeIndex = cmd.Bool("include-index")
	}
	injectNavigation := cfg.Viewer.InjectNavigation
	if cmd.IsSet("inject-navigation") {
		injectNavigation = cmd.Bool("inject-navigation")
	}

	overrides := styleOverrides(cmd)
	if overrides != nil {
		if err := overrides.Validate(); err != nil {
			return nil, fmt.Errorf("bad style value on command line: %w", err)
		}
	}

	names := cmd.StringSlice("stylesheet")
	if len(names) == 0 {
		names = cfg.Viewer.DefaultStylesheets
	}
	if len(names) == 0 {
		return []config.Style{{
			Name:             "default",
			IncludeIndex:     includeIndex,
			InjectNavigation: injectNavigation,
			Sheet:            overrides,
		}}, nil
	}

	styles := make([]config.Style, 0, len(names))
	for _, name := range names {
		sheet, ok := cfg.Stylesheets[name]
		if !ok {
			return nil, fmt.Errorf("stylesheet %q is not defined in configuration", name)
		}
		styles = append(styles, config.Style{
			Name:             name,
			IncludeIndex:     includeIndex,
			InjectNavigation: injectNavigation,
			Sheet:            config.MergeStylesheets(&sheet, overrides),
		})
	}
	return styles, nil
}

func openBooks(ctx context.Context, cmd *cli.Command) error {

	if cmd.NArg() == 0 {
		return cli.ShowAppHelp(cmd)
	}

	env := state.EnvFromContext(ctx)

	styles, err := resolveStyles(cmd, env.Cfg)
	if err != nil {
		return err
	}

	root, err := env.Cfg.LibraryPath()
	if err != nil {
		return err
	}
	lib, err := library.Open(root, env.Cfg.Library.MaxBooks, env.Cfg.Library.MaxBytes, env.Log)
	if err != nil {
		return err
	}

	browserCmd := cmd.String("browser")
	if len(browserCmd) == 0 {
		browserCmd = env.Cfg.Viewer.DefaultBrowser
	}

	return book.NewOpener(lib, env.Log, browserCmd).OpenAll(cmd.Args().Slice(), styles)
}
