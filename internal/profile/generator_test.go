// File: internal/profile/generator_test.go
package profile_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/profile"
)

func TestGenerateSeeded_Deterministic(t *testing.T) {
	a := profile.GenerateSeeded(42)
	b := profile.GenerateSeeded(42)
	assert.Equal(t, a, b, "same seed must yield the identical profile")

	c := profile.GenerateSeeded(43)
	assert.NotEqual(t, a.ID, c.ID, "different seeds should diverge")
}

func TestGenerate_AlwaysValid(t *testing.T) {
	// Generation cannot fail; hammer it and check invariants hold every time.
	for seed := int64(0); seed < 200; seed++ {
		p := profile.GenerateSeeded(seed)

		_, err := uuid.Parse(p.ID)
		require.NoError(t, err, "profile id must be a valid uuid")

		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Archetype)
		assert.NotEmpty(t, p.UserAgent)
		assert.NotEmpty(t, p.Locale)
		assert.NotEmpty(t, p.Timezone)

		assert.GreaterOrEqual(t, p.BrowsingSpeed, 0.3)
		assert.LessOrEqual(t, p.BrowsingSpeed, 2.5)
		assert.GreaterOrEqual(t, p.Patience, 2.0)
		assert.LessOrEqual(t, p.Patience, 30.0)
		assert.Greater(t, p.Age, 0)
		assert.Greater(t, p.ViewportWidth, 0)
		assert.Greater(t, p.ViewportHeight, 0)
	}
}

// TestFingerprintConsistency checks that behavioral attributes and fingerprint
// stay internally consistent: novice personas never carry a macOS/Linux
// developer-flavored user agent from the expert pool.
func TestFingerprintConsistency(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		p := profile.GenerateSeeded(seed)
		if p.TechLevel != schemas.TechNovice {
			continue
		}
		assert.True(t, strings.Contains(p.UserAgent, "Windows"),
			"novice persona got unexpected user agent: %s", p.UserAgent)
		assert.LessOrEqual(t, p.ViewportWidth, 1600)
	}
}
