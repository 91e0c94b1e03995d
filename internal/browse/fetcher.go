package browse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backend-nearvibe/internal/adventure"
	"backend-nearvibe/internal/filter"

	"github.com/gofiber/fiber/v2"
)

// Fetcher runs one discovery request.
type Fetcher interface {
	Fetch(ctx context.Context, q filter.Query, page int) (adventure.Page, error)
}

// HTTPFetcher calls GET /adventures on a NearVibe API.
type HTTPFetcher struct {
	BaseURL string
	Limit   int
	// Timeout of zero leaves the request unbounded.
	Timeout time.Duration
}

func (f HTTPFetcher) Fetch(ctx context.Context, q filter.Query, page int) (adventure.Page, error) {
	if err := ctx.Err(); err != nil {
		return adventure.Page{}, err
	}

	v := q.Values()
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	url := strings.TrimRight(f.BaseURL, "/") + "/adventures"
	if enc := v.Encode(); enc != "" {
		url += "?" + enc
	}

	agent := fiber.Get(url)
	if f.Timeout > 0 {
		agent.Timeout(f.Timeout)
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return adventure.Page{}, fmt.Errorf("fetch adventures: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return adventure.Page{}, fmt.Errorf("fetch adventures: status %d: %s", code, e.Error)
	}

	var out adventure.Page
	if err := json.Unmarshal(body, &out); err != nil {
		return adventure.Page{}, fmt.Errorf("decode adventures: %w", err)
	}
	return out, nil
}
