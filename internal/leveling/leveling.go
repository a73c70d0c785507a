// Package leveling defines the experience curve and per-level gains.
package leveling

import "math"

// Leveling constants
const (
	MaxLevel       = 50
	HealthPerLevel = 10
	ManaPerLevel   = 5
	PointsPerLevel = 3
)

// XPForLevel returns the total experience required to reach a given level.
// Uses polynomial curve: 100 * level^1.5.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return int(100 * math.Pow(float64(level), 1.5))
}

// XPToNextLevel returns experience needed from the current level to the next.
func XPToNextLevel(currentLevel int) int {
	if currentLevel >= MaxLevel {
		return 0
	}
	return XPForLevel(currentLevel+1) - XPForLevel(currentLevel)
}

// LevelForExperience returns the level a total experience amount corresponds
// to. The curve is monotonic, so walk up until the threshold exceeds total.
func LevelForExperience(total int) int {
	level := 1
	for level < MaxLevel && total >= XPForLevel(level+1) {
		level++
	}
	return level
}

// LevelUpInfo describes one level-up event.
type LevelUpInfo struct {
	NewLevel   int
	HealthGain float64
	ManaGain   float64
	PointsGain int
}

// GainsForLevelUp returns the vitals and stat points granted when reaching
// newLevel.
func GainsForLevelUp(newLevel int) LevelUpInfo {
	return LevelUpInfo{
		NewLevel:   newLevel,
		HealthGain: HealthPerLevel,
		ManaGain:   ManaPerLevel,
		PointsGain: PointsPerLevel,
	}
}
