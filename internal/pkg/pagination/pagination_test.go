package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  Query
	}{
		{"", Query{Page: 1, Size: 10}},
		{"?page=3&limit=5", Query{Page: 3, Size: 5}},
		{"?page=0&limit=0", Query{Page: 1, Size: 10}},
		{"?limit=500", Query{Page: 1, Size: MaxSize}},
		{"?size=7", Query{Page: 1, Size: 7}},
		{"?page=abc&limit=xyz", Query{Page: 1, Size: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/api/history"+tt.query, nil)
			if got := FromContext(c); got != tt.want {
				t.Errorf("FromContext() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMeta(t *testing.T) {
	q := Query{Page: 2, Size: 10}
	m := q.Meta(25)
	if m.TotalPage != 3 || !m.HasNextPage || m.CurrentPage != 2 || m.Total != 25 {
		t.Errorf("Meta = %+v", m)
	}
	if q.Offset() != 10 {
		t.Errorf("Offset = %d", q.Offset())
	}
	if last := (Query{Page: 3, Size: 10}).Meta(25); last.HasNextPage {
		t.Error("last page should not have next")
	}
	if empty := (Query{Page: 1, Size: 10}).Meta(0); empty.TotalPage != 0 || empty.HasNextPage {
		t.Errorf("empty Meta = %+v", empty)
	}
}
