// Package content provides the read-only game content tables (abilities,
// items, races, quests, locations) keyed by string id, loaded once at
// startup and shared by every room.
package content

// AffectOp is how an ability effect combines with the current property value.
type AffectOp string

const (
	OpAdd      AffectOp = "add"
	OpRemove   AffectOp = "remove"
	OpMultiply AffectOp = "multiply"
)

// Effect is one property delta an ability applies to its caster or targets.
// Magnitude is rolled uniformly in [Min, Max] and level-scaled for targets.
type Effect struct {
	Property string   `yaml:"property"` // "health", "mana"
	Op       AffectOp `yaml:"op"`
	Min      float64  `yaml:"min"`
	Max      float64  `yaml:"max"`
}

// Ability is a castable ability definition.
type Ability struct {
	Key               string   `yaml:"-"`
	Name              string   `yaml:"name"`
	ManaCost          float64  `yaml:"mana_cost"`
	CooldownMS        int      `yaml:"cooldown_ms"`
	CastTimeMS        int      `yaml:"cast_time_ms"`
	AnimationMS       int      `yaml:"animation_ms"`
	MinRange          float64  `yaml:"min_range"` // >0: approach before casting
	Range             float64  `yaml:"range"`     // >0: area effect radius
	RequiresTarget    bool     `yaml:"requires_target"`
	SelfCastAllowed   bool     `yaml:"self_cast_allowed"`
	CasterEffects     []Effect `yaml:"caster_effects"`
	TargetEffects     []Effect `yaml:"target_effects"`
}

// Item is a static item definition.
type Item struct {
	Key   string `yaml:"-"`
	Name  string `yaml:"name"`
	Slot  string `yaml:"slot,omitempty"` // equipment slot, empty for non-equippable
	Value int    `yaml:"value"`          // vendor price in gold
	Armor int    `yaml:"armor,omitempty"`
	// Consumable fields
	Consumable bool    `yaml:"consumable,omitempty"`
	HealAmount float64 `yaml:"heal_amount,omitempty"`
	ManaAmount float64 `yaml:"mana_amount,omitempty"`
}

// Race describes a playable race or enemy species.
type Race struct {
	Key         string  `yaml:"-"`
	Name        string  `yaml:"name"`
	Speed       float64 `yaml:"speed"`
	BaseHealth  float64 `yaml:"base_health"`
	BaseMana    float64 `yaml:"base_mana"`
	RegenHealth float64 `yaml:"regen_health"` // per tick, while below cap
	RegenMana   float64 `yaml:"regen_mana"`
}

// Quest is a static quest definition. Progress is tracked per player.
type Quest struct {
	Key         string `yaml:"-"`
	Name        string `yaml:"name"`
	TargetRace  string `yaml:"target_race"` // race key counted towards RequiredQty
	RequiredQty int    `yaml:"required_qty"`
	RewardExp   int    `yaml:"reward_exp"`
	RewardGold  int    `yaml:"reward_gold"`
}

// LootEntry is one weighted row in a spawn's loot table.
type LootEntry struct {
	Key    string `yaml:"key"`
	Weight int    `yaml:"weight"`
	Min    int    `yaml:"min"`
	Max    int    `yaml:"max"`
}

// SpawnBehavior selects the AI profile for a spawn definition.
type SpawnBehavior string

const (
	BehaviorStatic SpawnBehavior = "static" // never leaves Idle except to die
	BehaviorPatrol SpawnBehavior = "patrol"
)

// SpawnDef configures one enemy type within a location.
type SpawnDef struct {
	Race             string        `yaml:"race"`
	Count            int           `yaml:"count"`
	Behavior         SpawnBehavior `yaml:"behavior"`
	AggroRadius      float64       `yaml:"aggro_radius"`
	AttackRange      float64       `yaml:"attack_range"`
	AttackIntervalMS int           `yaml:"attack_interval_ms"`
	AttackDamage     float64       `yaml:"attack_damage"`
	Aggressive       bool          `yaml:"aggressive"`
	Attackable       bool          `yaml:"attackable"`
	SearchPeriodMS   int           `yaml:"search_period_ms"` // chase give-up window
	ExpMin           int           `yaml:"exp_min"`
	ExpMax           int           `yaml:"exp_max"`
	GoldMin          int           `yaml:"gold_min"`
	GoldMax          int           `yaml:"gold_max"`
	Loot             []LootEntry   `yaml:"loot"`
}

// Point is a spawn or waypoint position in a location file.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Location describes one map/room instance.
type Location struct {
	Key        string     `yaml:"-"`
	Name       string     `yaml:"name"`
	MeshFile   string     `yaml:"mesh_file"`
	SpawnPoint Point      `yaml:"spawn_point"`
	Spawners   []SpawnDef `yaml:"spawners"`
}
