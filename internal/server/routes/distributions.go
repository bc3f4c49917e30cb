package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Vampire/setup-wsl-sub000/internal/distribution"
)

type distributionPayload struct {
	ID            string `json:"id"`
	WSLID         string `json:"wsl_id"`
	DisplayName   string `json:"display_name"`
	Version       string `json:"version"`
	Family        string `json:"family"`
	InstallerFile string `json:"installer_file"`
	Source        string `json:"source"`
	CacheKey      string `json:"cache_key"`
}

// RegisterDistributionRoutes 暴露 /-/distributions，列出已注册发行版及其缓存键，便于预热缓存。
func RegisterDistributionRoutes(app *fiber.App) {
	if app == nil {
		return
	}

	app.Get("/-/distributions", func(c fiber.Ctx) error {
		items := distribution.List()
		payload := make([]distributionPayload, 0, len(items))
		for _, dist := range items {
			payload = append(payload, encodeDistribution(dist))
		}
		return c.JSON(fiber.Map{"distributions": payload})
	})

	app.Get("/-/distributions/:id", func(c fiber.Ctx) error {
		dist, err := distribution.Lookup(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "distribution_not_found"})
		}
		return c.JSON(encodeDistribution(dist))
	})
}

func encodeDistribution(dist *distribution.Distribution) distributionPayload {
	source := "product:" + dist.ProductID
	if dist.DirectURL != "" {
		source = dist.DirectURL
	}
	return distributionPayload{
		ID:            dist.UserID,
		WSLID:         dist.WSLID,
		DisplayName:   dist.DisplayName,
		Version:       dist.SemVer(),
		Family:        dist.Family.Name,
		InstallerFile: dist.InstallerFile,
		Source:        source,
		CacheKey:      distribution.CacheKey(dist),
	}
}
