package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "go for beginners", NormalizeName("  Go\tfor \n Beginners "))
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("Intro to Docker", []string{"docker"}))
	require.False(t, MatchName("Intro to Docker", []string{"kubernetes"}))
}

func TestBestMatch(t *testing.T) {
	candidates := []string{
		"The Complete Go Developer Course",
		"Docker Mastery",
		"Kubernetes for the Absolute Beginners",
	}

	testCases := []struct {
		name     string
		query    string
		expected int
	}{
		{name: "exact", query: "docker mastery", expected: 1},
		{name: "whitespace", query: "  Docker   Mastery ", expected: 1},
		{name: "typo", query: "Kubernetes for the Absolute Beginner", expected: 2},
		{name: "unrelated", query: "Watercolor painting", expected: -1},
		{name: "empty", query: "", expected: -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			index, _ := BestMatch(tc.query, candidates)
			require.Equal(t, tc.expected, index)
		})
	}
}
