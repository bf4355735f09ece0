// File: internal/profile/generator.go

// Package profile produces the behavioral personas that parameterize a
// session: timing, exploration style, and browser fingerprint. Generation
// cannot fail; given a seed it is fully deterministic, without one it draws
// from the archetype catalogue with bounded perturbation so runs are varied
// but never degenerate.
package profile

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

// archetype is one entry of the fixed persona catalogue. Numeric fields are
// midpoints; the generator perturbs them within jitter bounds.
type archetype struct {
	name       string
	techLevel  schemas.TechLevel
	style      schemas.ExplorationStyle
	speed      float64 // browsing speed multiplier midpoint
	patience   float64 // seconds the persona tolerates a wait, midpoint
	ageMin     int
	ageMax     int
	userAgents []string
	viewports  [][2]int
}

// The catalogue keeps fingerprints internally consistent: a novice persona
// never gets a niche developer browser string or an ultrawide viewport.
var catalogue = []archetype{
	{
		name:      "impatient expert",
		techLevel: schemas.TechExpert,
		style:     schemas.ExplorationGoalDriven,
		speed:     1.6,
		patience:  4,
		ageMin:    24, ageMax: 45,
		userAgents: []string{
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		},
		viewports: [][2]int{{1920, 1080}, {2560, 1440}},
	},
	{
		name:      "patient novice",
		techLevel: schemas.TechNovice,
		style:     schemas.ExplorationSystematic,
		speed:     0.6,
		patience:  15,
		ageMin:    45, ageMax: 75,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0",
		},
		viewports: [][2]int{{1366, 768}, {1536, 864}},
	},
	{
		name:      "curious average user",
		techLevel: schemas.TechAverage,
		style:     schemas.ExplorationCurious,
		speed:     1.0,
		patience:  8,
		ageMin:    18, ageMax: 60,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (Version/17.4 Safari/605.1.15)",
		},
		viewports: [][2]int{{1440, 900}, {1680, 1050}, {1920, 1080}},
	},
	{
		name:      "distracted mobile-first user",
		techLevel: schemas.TechAverage,
		style:     schemas.ExplorationCurious,
		speed:     0.8,
		patience:  5,
		ageMin:    16, ageMax: 35,
		userAgents: []string{
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
		},
		viewports: [][2]int{{390, 844}, {412, 915}},
	},
}

var locales = []struct {
	locale   string
	timezone string
}{
	{"en-US", "America/Los_Angeles"},
	{"en-US", "America/New_York"},
	{"en-GB", "Europe/London"},
	{"de-DE", "Europe/Berlin"},
}

// Generate returns a random but always valid persona.
func Generate() schemas.HumanProfile {
	return generate(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// GenerateSeeded returns the persona deterministically derived from seed.
// Calling it twice with the same seed yields identical profiles.
func GenerateSeeded(seed int64) schemas.HumanProfile {
	return generate(rand.New(rand.NewSource(seed)))
}

func generate(rng *rand.Rand) schemas.HumanProfile {
	arch := catalogue[rng.Intn(len(catalogue))]
	loc := locales[rng.Intn(len(locales))]
	viewport := arch.viewports[rng.Intn(len(arch.viewports))]

	// Perturb numeric fields within bounded ranges around the archetype
	// midpoint. Clamps keep even unlucky draws usable.
	speed := clamp(arch.speed*(0.85+rng.Float64()*0.3), 0.3, 2.5)
	patience := clamp(arch.patience*(0.8+rng.Float64()*0.4), 2, 30)
	age := arch.ageMin + rng.Intn(arch.ageMax-arch.ageMin+1)

	id := deterministicUUID(rng)
	return schemas.HumanProfile{
		ID:             id,
		Name:           fmt.Sprintf("%s #%s", arch.name, id[:8]),
		Archetype:      arch.name,
		Age:            age,
		TechLevel:      arch.techLevel,
		Style:          arch.style,
		BrowsingSpeed:  speed,
		Patience:       patience,
		UserAgent:      arch.userAgents[rng.Intn(len(arch.userAgents))],
		ViewportWidth:  viewport[0],
		ViewportHeight: viewport[1],
		Locale:         loc.locale,
		Timezone:       loc.timezone,
	}
}

// deterministicUUID derives a v4-shaped UUID from the generator's RNG so that
// seeded profiles are reproducible end to end, id included.
func deterministicUUID(rng *rand.Rand) string {
	var b [16]byte
	for i := range b {
		b[i] = byte(rng.Intn(256))
	}
	u, err := uuid.FromBytes(b[:])
	if err != nil {
		// 16 bytes always form a valid UUID; this path is unreachable.
		return uuid.New().String()
	}
	u[6] = (u[6] & 0x0f) | 0x40
	u[8] = (u[8] & 0x3f) | 0x80
	return u.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
