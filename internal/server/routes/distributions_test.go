package routes

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestDistributionListIncludesCacheKeys(t *testing.T) {
	app := fiber.New()
	RegisterDistributionRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/distributions", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Distributions []distributionPayload `json:"distributions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Distributions) != 10 {
		t.Fatalf("expected 10 distributions, got %d", len(body.Distributions))
	}
	if body.Distributions[0].ID != "Alpine" {
		t.Fatalf("expected Alpine first, got %s", body.Distributions[0].ID)
	}
	if body.Distributions[0].CacheKey != "2:distributionDirectory_Alpine_1.0.3" {
		t.Fatalf("unexpected cache key %s", body.Distributions[0].CacheKey)
	}
	if body.Distributions[0].Family != "apk" {
		t.Fatalf("expected apk family, got %s", body.Distributions[0].Family)
	}
}

func TestDistributionDetail(t *testing.T) {
	app := fiber.New()
	RegisterDistributionRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/distributions/Ubuntu-20.04", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var payload distributionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.WSLID != "Ubuntu" {
		t.Fatalf("expected wsl id Ubuntu, got %s", payload.WSLID)
	}
	if payload.Source != "https://aka.ms/wslubuntu2004" {
		t.Fatalf("unexpected source %s", payload.Source)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/-/distributions/ubuntu-20.04", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("lookup must be case-sensitive, got %d", resp.StatusCode)
	}
}
