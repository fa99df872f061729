package server

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FACorreiaa/churninsight-dashboard/assets"
)

const assetsMaxAge = "public, max-age=3600"

// SetupAssets serves the embedded stylesheets under /assets/css.
func SetupAssets(r *gin.Engine) error {
	css, err := fs.Sub(assets.Assets, "css")
	if err != nil {
		return err
	}
	g := r.Group("/assets", func(c *gin.Context) {
		c.Header("Cache-Control", assetsMaxAge)
		c.Next()
	})
	g.StaticFS("/css", http.FS(css))
	return nil
}
