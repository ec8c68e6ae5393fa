package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderFilterAndSearch(t *testing.T) {
	b := NewBuilder().
		Filter("user_id", 7).
		Filter("status", "PENDING").
		Search("report", "title", "description")

	require.Equal(t,
		" WHERE user_id = $1 AND status = $2 AND (title ILIKE $3 OR description ILIKE $3)",
		b.Where())
	require.Equal(t, []interface{}{7, "PENDING", "%report%"}, b.Args())
}

func TestBuilderEmpty(t *testing.T) {
	b := NewBuilder()
	require.Equal(t, "", b.Where())
	require.Empty(t, b.Args())
}

func TestBuilderSearchEmptyTermIsNoop(t *testing.T) {
	b := NewBuilder().Filter("user_id", 1).Search("", "title")
	require.Equal(t, " WHERE user_id = $1", b.Where())
}

func TestOrderBy(t *testing.T) {
	allowed := []string{"due_date", "priority", "created_at"}

	require.Equal(t, " ORDER BY created_at DESC", OrderBy("", "-created_at", allowed...))
	require.Equal(t, " ORDER BY due_date", OrderBy("due_date", "-created_at", allowed...))
	require.Equal(t, " ORDER BY due_date DESC", OrderBy("-due_date", "-created_at", allowed...))
	// Fields outside the whitelist fall back to the default.
	require.Equal(t, " ORDER BY created_at DESC", OrderBy("password", "-created_at", allowed...))
	require.Equal(t, " ORDER BY created_at DESC", OrderBy("-id", "-created_at", allowed...))
}

func TestClampPageSize(t *testing.T) {
	require.Equal(t, 5, ClampPageSize(0, 5, 100))
	require.Equal(t, 5, ClampPageSize(-3, 5, 100))
	require.Equal(t, 20, ClampPageSize(20, 5, 100))
	require.Equal(t, 100, ClampPageSize(500, 5, 100))
}

func TestPaginateMiddlePage(t *testing.T) {
	params := url.Values{}
	params.Set("priority", "HIGH")
	params.Set("page", "2")

	p := Paginate(12, 2, 5, "http://example.com/api/tasks/", params, []int{1, 2, 3, 4, 5})

	require.Equal(t, 12, p.Count)
	require.NotNil(t, p.Next)
	require.NotNil(t, p.Previous)

	next, err := url.Parse(*p.Next)
	require.NoError(t, err)
	require.Equal(t, "3", next.Query().Get("page"))
	require.Equal(t, "HIGH", next.Query().Get("priority"))

	prev, err := url.Parse(*p.Previous)
	require.NoError(t, err)
	require.Equal(t, "1", prev.Query().Get("page"))
}

func TestPaginateEdges(t *testing.T) {
	first := Paginate(7, 1, 5, "http://example.com/api/tasks/", url.Values{}, nil)
	require.NotNil(t, first.Next)
	require.Nil(t, first.Previous)

	last := Paginate(7, 2, 5, "http://example.com/api/tasks/", url.Values{}, nil)
	require.Nil(t, last.Next)
	require.NotNil(t, last.Previous)

	only := Paginate(3, 1, 5, "http://example.com/api/tasks/", url.Values{}, nil)
	require.Nil(t, only.Next)
	require.Nil(t, only.Previous)
}
