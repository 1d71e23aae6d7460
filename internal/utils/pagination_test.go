package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsePaginationFor(t *testing.T, query string) Pagination {
	t.Helper()

	var got Pagination
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParsePagination(c)
		return nil
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/"+query, nil), -1)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return got
}

func TestParsePaginationDefaults(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Offset: 0}, parsePaginationFor(t, ""))
	assert.Equal(t, Pagination{Page: 3, Limit: 10, Offset: 20}, parsePaginationFor(t, "?page=3&limit=10"))
	assert.Equal(t, Pagination{Page: 1, Limit: 100, Offset: 0}, parsePaginationFor(t, "?page=-4&limit=5000"))
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Offset: 0}, parsePaginationFor(t, "?page=abc&limit=0"))
}

func TestParsePaginationHugePageStaysFar(t *testing.T) {
	for _, query := range []string{
		"?page=92233720368547758&limit=100",
		"?page=99999999999999999999999&limit=100",
	} {
		p := parsePaginationFor(t, query)
		assert.Equal(t, MaxPage, p.Page, query)
		assert.Positive(t, p.Offset, query)
		assert.Equal(t, (MaxPage-1)*100, p.Offset, query)
		assert.Equal(t, p.Offset, p.Repo().Offset, query)
	}
}
