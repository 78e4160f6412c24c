package server

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FACorreiaa/loci-planner/assets"
)

const assetsMaxAge = "public, max-age=86400"

// SetupAssets serves the embedded stylesheet and images under /assets.
func SetupAssets(r *gin.Engine) error {
	files, err := fs.Sub(assets.Assets, ".")
	if err != nil {
		return err
	}
	group := r.Group("/assets", func(c *gin.Context) {
		c.Header("Cache-Control", assetsMaxAge)
		c.Next()
	})
	group.StaticFS("/", http.FS(files))
	return nil
}
