/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/spf13/afero"
)

//go:embed assets
var embeddedAssets embed.FS

// newAssetFS returns the built-in assets, overlaid by dir when it is set.
// Files in dir shadow built-in files with the same relative path.
func newAssetFS(dir string) (afero.Fs, error) {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return nil, err
	}

	base := afero.FromIOFS{FS: sub}
	if dir == "" {
		return base, nil
	}

	osFs := afero.NewOsFs()

	isDir, err := afero.IsDir(osFs, dir)
	if err != nil {
		return nil, fmt.Errorf("unable to open assets directory: %w", err)
	}
	if !isDir {
		return nil, fmt.Errorf("assets path is not a directory: %s", dir)
	}

	layer := afero.NewReadOnlyFs(afero.NewBasePathFs(osFs, dir))

	return afero.NewCopyOnWriteFs(base, layer), nil
}

// cleanAssetPath turns a request path into a name inside the asset filesystem.
func cleanAssetPath(name string) (string, bool) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}

	return name, true
}

func readAsset(assets afero.Fs, name string) ([]byte, error) {
	clean, ok := cleanAssetPath(name)
	if !ok {
		return nil, fs.ErrNotExist
	}

	isDir, err := afero.IsDir(assets, clean)
	if err == nil && isDir {
		return nil, fs.ErrNotExist
	}

	return afero.ReadFile(assets, clean)
}

// checkPlayers makes sure every configured avatar can be served.
func checkPlayers(assets afero.Fs, players []string) error {
	var errs []error

	for _, player := range players {
		clean, ok := cleanAssetPath(player)
		if !ok {
			errs = append(errs, fmt.Errorf("invalid player avatar path: %q", player))
			continue
		}

		exists, err := afero.Exists(assets, clean)
		if err != nil || !exists {
			errs = append(errs, fmt.Errorf("player avatar not found in assets: %q", player))
		}
	}

	return errors.Join(errs...)
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".webmanifest":
		return "application/manifest+json"
	}

	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}

	return "application/octet-stream"
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}
