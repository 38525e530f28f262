package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
)

func TestEncodeBulk(t *testing.T) {
	o := endpoint.Options{Protocol: "http", Host: "localhost", Port: 9200, Prefix: "blog", Index: "posts", Type: "post"}
	body, err := EncodeBulk(o.WithIndex("blog-posts-gen"), []BulkItem{
		{ID: "a1", Doc: map[string]any{"title": "<first>"}},
		{ID: "b2", Doc: map[string]any{"title": "second"}},
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(body), "\n"), "bulk bodies end with a newline")

	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"blog-posts-gen","_type":"post","_id":"a1"}}`, lines[0])
	assert.Equal(t, `{"title":"<first>"}`, lines[1])
	assert.JSONEq(t, `{"index":{"_index":"blog-posts-gen","_type":"post","_id":"b2"}}`, lines[2])
	assert.JSONEq(t, `{"title":"second"}`, lines[3])
}

func TestEncodeBulk_Empty(t *testing.T) {
	body, err := EncodeBulk(endpoint.Options{Index: "x"}, nil)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestEncodeBulk_UnencodableDocument(t *testing.T) {
	_, err := EncodeBulk(endpoint.Options{Index: "x"}, []BulkItem{{ID: "a", Doc: map[string]any{"f": func() {}}}})
	assert.Error(t, err)
}
