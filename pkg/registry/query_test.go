package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osops-utils/pkg/model"
)

func TestQueryString(t *testing.T) {
	t.Parallel()

	q := NewQuery(FieldRecipes, "nova::api").And(FieldEnvironment, "prod")
	assert.Equal(t, `recipes:nova\:\:api AND environment:prod`, q.String())
	assert.Equal(t, "*:*", Query{}.String())
}

func TestParseQueryRoundTrip(t *testing.T) {
	t.Parallel()

	q := NewQuery(FieldRecipes, "nova::api").And(FieldEnvironment, "prod")
	parsed, err := ParseQuery(q.String())
	require.NoError(t, err)
	assert.Equal(t, q, parsed)

	env, ok := parsed.Environment()
	assert.True(t, ok)
	assert.Equal(t, "prod", env)
}

func TestParseQueryErrors(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "roles", ":x", "color:blue", "roles:a AND nope"} {
		_, err := ParseQuery(s)
		assert.Error(t, err, s)
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	n := &model.Node{
		Name:        "api1",
		Environment: "prod",
		Roles:       []string{"api"},
		Recipes:     []string{"nova::api"},
		Tags:        []string{"canary"},
	}
	tests := []struct {
		query string
		want  bool
	}{
		{"*:*", true},
		{"roles:api", true},
		{"roles:db", false},
		{`recipes:nova\:\:api AND environment:prod`, true},
		{`recipes:nova\:\:api AND environment:dev`, false},
		{"tags:canary AND name:api1", true},
		{"tags:*", true},
		{"environment:* AND roles:api", true},
	}
	for _, tc := range tests {
		q, err := ParseQuery(tc.query)
		require.NoError(t, err, tc.query)
		assert.Equal(t, tc.want, q.Match(n), tc.query)
	}
}
