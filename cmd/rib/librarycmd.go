package main

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"rib/library"
	"rib/state"
)

func openLibrary(ctx context.Context) (*library.Library, error) {
	env := state.EnvFromContext(ctx)
	root, err := env.Cfg.LibraryPath()
	if err != nil {
		return nil, err
	}
	return library.Open(root, env.Cfg.Library.MaxBooks, env.Cfg.Library.MaxBytes, env.Log)
}

func libraryList(ctx context.Context, _ *cli.Command) error {

	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}

	entries := lib.List()
	if len(entries) == 0 {
		fmt.Println("Library is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s\n    id: %s\n    size: %s, last opened: %s\n    from: %s\n",
			e.Title, e.BookID, formatSize(e.Size), e.LastAccessTime.Local().Format("2006-01-02 15:04:05"), e.Source.Path)
	}
	fmt.Printf("%d book(s), %s total\n", lib.Count(), formatSize(lib.TotalSize()))
	return nil
}

func libraryClear(ctx context.Context, cmd *cli.Command) error {

	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("all"):
		return lib.Clear()
	case cmd.NArg() > 0:
		return lib.Remove(cmd.Args().Slice()...)
	case cmd.IsSet("max-books") || cmd.IsSet("max-bytes"):
		return lib.Shrink(cmd.Int("max-books"), int64(cmd.Int("max-bytes")))
	default:
		return errors.New("nothing to clear - give book IDs, --all or shrink limits")
	}
}

func libraryPath(ctx context.Context, _ *cli.Command) error {
	root, err := state.EnvFromContext(ctx).Cfg.LibraryPath()
	if err != nil {
		return err
	}
	fmt.Println(root)
	return nil
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
