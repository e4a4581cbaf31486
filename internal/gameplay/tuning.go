package gameplay

import (
	"encoding/json"
	"sync"

	_ "embed"
)

// Size3 describes a box extent.
type Size3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlayerTuning captures the first-person movement model.
type PlayerTuning struct {
	EyeHeight        float64 `json:"eyeHeight"`
	Damping          float64 `json:"damping"`
	Gravity          float64 `json:"gravity"`
	MoveAcceleration float64 `json:"moveAcceleration"`
	JumpImpulse      float64 `json:"jumpImpulse"`
	LookSensitivity  float64 `json:"lookSensitivity"`
}

// WorldTuning captures target and column spawn boxes plus animation rates.
type WorldTuning struct {
	TargetCount        int     `json:"targetCount"`
	TargetHalfWidth    float64 `json:"targetHalfWidth"`
	TargetMinHeight    float64 `json:"targetMinHeight"`
	TargetHeightSpread float64 `json:"targetHeightSpread"`
	TargetDepthOffset  float64 `json:"targetDepthOffset"`
	TargetHalfDepth    float64 `json:"targetHalfDepth"`
	FloatSpeedBase     float64 `json:"floatSpeedBase"`
	BobAmplitude       float64 `json:"bobAmplitude"`
	BobFrequency       float64 `json:"bobFrequency"`
	MaxRotationSpeed   float64 `json:"maxRotationSpeed"`
	ColumnCount        int     `json:"columnCount"`
	ColumnHalfExtent   float64 `json:"columnHalfExtent"`
	ColumnMinHeight    float64 `json:"columnMinHeight"`
	ColumnHeightSpread float64 `json:"columnHeightSpread"`
	ColumnSize         Size3   `json:"columnSize"`
}

// WeaponTuning captures hitscan and visual feedback timings.
type WeaponTuning struct {
	TargetRadius        float64 `json:"targetRadius"`
	MissDistance        float64 `json:"missDistance"`
	BeamLifetimeSeconds float64 `json:"beamLifetimeSeconds"`
	RecoilWindowMs      int     `json:"recoilWindowMs"`
	RecoilOffset        float64 `json:"recoilOffset"`
	HitFlashMs          int     `json:"hitFlashMs"`
	Offset              Size3   `json:"offset"`
	YawOffset           float64 `json:"yawOffset"`
	BarrelLength        float64 `json:"barrelLength"`
}

// RadarTuning captures the minimap geometry.
type RadarTuning struct {
	Size         float64 `json:"size"`
	Range        float64 `json:"range"`
	Rings        int     `json:"rings"`
	SweepRate    float64 `json:"sweepRate"`
	SweepWidth   float64 `json:"sweepWidth"`
	BlipRadius   float64 `json:"blipRadius"`
	EdgeFadeBand float64 `json:"edgeFadeBand"`
}

// Tuning is the complete range catalogue.
type Tuning struct {
	Player      PlayerTuning `json:"player"`
	World       WorldTuning  `json:"world"`
	Weapon      WeaponTuning `json:"weapon"`
	Radar       RadarTuning  `json:"radar"`
	ScorePerHit int          `json:"scorePerHit"`
}

//go:embed range.json
var rangePayload []byte

var (
	rangeOnce sync.Once
	rangeData Tuning
	rangeErr  error
)

// RangeTuning exposes the cached range configuration to gameplay systems.
func RangeTuning() Tuning {
	rangeOnce.Do(func() {
		//1.- Parse the embedded JSON payload exactly once in a threadsafe manner.
		rangeErr = json.Unmarshal(rangePayload, &rangeData)
	})
	//2.- Panic immediately when the configuration cannot be decoded to avoid silent divergence.
	if rangeErr != nil {
		panic(rangeErr)
	}
	//3.- Return a copy of the cached tuning so callers cannot mutate shared state.
	return rangeData
}
