package utils

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/example/orderdesk/internal/repository"
)

const maxPageSize = 100

// MaxPage keeps (page-1)*limit inside an int32 offset for every limit.
const MaxPage = math.MaxInt32 / maxPageSize

// Pagination holds pagination parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit query params with sane defaults.
func ParsePagination(c *fiber.Ctx) Pagination {
	page := parseInt(c.Query("page", "1"), 1)
	limit := parseInt(c.Query("limit", "20"), 20)
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Repo converts the parameters into a repository page.
func (p Pagination) Repo() repository.Page {
	return repository.Page{Limit: p.Limit, Offset: p.Offset}
}

// Meta renders the pagination block returned alongside list payloads.
func (p Pagination) Meta(total int64) fiber.Map {
	return fiber.Map{
		"current_page":   p.Page,
		"items_per_page": p.Limit,
		"total_items":    total,
	}
}

// parseInt falls back on garbage; out-of-range numbers saturate instead.
func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return parsed
	}
	return fallback
}
