package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// setupStaticFiles serves the chat widget from dir. Unknown non-API paths
// fall back to index.html.
func setupStaticFiles(router *gin.Engine, dir string) {
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		log.Info().Str("dir", dir).Msg("no public dir, static files disabled")
		router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		})
		return
	}

	log.Info().Str("dir", dir).Msg("serving static files")
	fileServer := http.FileServer(http.Dir(dir))

	router.NoRoute(func(c *gin.Context) {
		urlPath := c.Request.URL.Path
		if strings.HasPrefix(urlPath, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+urlPath)))
		if stat, err := os.Stat(name); err == nil && !stat.IsDir() {
			fileServer.ServeHTTP(c.Writer, c.Request)
			return
		}
		c.File(index)
	})
}
