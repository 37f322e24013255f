package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paramsFor(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  Params
	}{
		{"defaults", "", Params{Page: 1, Limit: 20, Offset: 0}},
		{"explicit", "page=3&limit=10", Params{Page: 3, Limit: 10, Offset: 20}},
		{"zero page falls back", "page=0", Params{Page: 1, Limit: 20, Offset: 0}},
		{"negative page falls back", "page=-2", Params{Page: 1, Limit: 20, Offset: 0}},
		{"zero limit falls back", "limit=0", Params{Page: 1, Limit: 20, Offset: 0}},
		{"limit clamped to max", "limit=5000", Params{Page: 1, Limit: 100, Offset: 0}},
		{"garbage falls back", "page=abc&limit=xyz", Params{Page: 1, Limit: 20, Offset: 0}},
		{"offset uses clamped limit", "page=2&limit=500", Params{Page: 2, Limit: 100, Offset: 100}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, paramsFor(tc.query))
		})
	}
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(Params{Page: 2, Limit: 50, Offset: 50}, 123)
	assert.Equal(t, Meta{Page: 2, Limit: 50, Total: 123}, meta)
}
