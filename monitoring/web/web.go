// Package web holds the monitor page.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
)

// AssetsEnv names the environment variable that replaces the embedded page.
// The value "dev" serves the page from the source tree, so that it can be
// edited without rebuilding. Any other non-empty value is a directory.
const AssetsEnv = "SCHD_MONITOR_ASSETS"

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the files of the monitor page.
func GetAssets() http.FileSystem {
	switch dir := os.Getenv(AssetsEnv); dir {
	case "":
		return embedded()
	case "dev":
		return http.Dir(sourceDir())
	default:
		return http.Dir(dir)
	}
}

func embedded() http.FileSystem {
	sub, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func sourceDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the monitor sources")
	}

	return filepath.Join(filepath.Dir(file), "dist")
}
