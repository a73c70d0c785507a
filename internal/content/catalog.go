package content

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Catalog aggregates every content registry. It is immutable after Load and
// safe for concurrent reads from all rooms.
type Catalog struct {
	abilities map[string]*Ability
	items     map[string]*Item
	races     map[string]*Race
	quests    map[string]*Quest
	locations map[string]*Location
}

// yaml file shapes, one top-level key per table like the rest of the data dir.
type abilitiesFile struct {
	Abilities map[string]Ability `yaml:"abilities"`
}

type itemsFile struct {
	Items map[string]Item `yaml:"items"`
}

type racesFile struct {
	Races map[string]Race `yaml:"races"`
}

type questsFile struct {
	Quests map[string]Quest `yaml:"quests"`
}

type locationsFile struct {
	Locations map[string]Location `yaml:"locations"`
}

// Load reads every content table from dir. Any missing or malformed table is
// an error: the server cannot run with partial content.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{
		abilities: make(map[string]*Ability),
		items:     make(map[string]*Item),
		races:     make(map[string]*Race),
		quests:    make(map[string]*Quest),
		locations: make(map[string]*Location),
	}

	var af abilitiesFile
	if err := readYAML(filepath.Join(dir, "abilities.yaml"), &af); err != nil {
		return nil, err
	}
	for key, def := range af.Abilities {
		a := def
		a.Key = key
		c.abilities[key] = &a
	}

	var itf itemsFile
	if err := readYAML(filepath.Join(dir, "items.yaml"), &itf); err != nil {
		return nil, err
	}
	for key, def := range itf.Items {
		it := def
		it.Key = key
		c.items[key] = &it
	}

	var rf racesFile
	if err := readYAML(filepath.Join(dir, "races.yaml"), &rf); err != nil {
		return nil, err
	}
	for key, def := range rf.Races {
		r := def
		r.Key = key
		c.races[key] = &r
	}

	var qf questsFile
	if err := readYAML(filepath.Join(dir, "quests.yaml"), &qf); err != nil {
		return nil, err
	}
	for key, def := range qf.Quests {
		q := def
		q.Key = key
		c.quests[key] = &q
	}

	var lf locationsFile
	if err := readYAML(filepath.Join(dir, "locations.yaml"), &lf); err != nil {
		return nil, err
	}
	for key, def := range lf.Locations {
		l := def
		l.Key = key
		c.locations[key] = &l
	}

	return c, nil
}

// readYAML reads a single YAML table file into out.
func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read content file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse content file %s: %w", path, err)
	}
	return nil
}

// Ability returns the ability for key, or false when unknown.
func (c *Catalog) Ability(key string) (*Ability, bool) {
	a, ok := c.abilities[key]
	return a, ok
}

// Item returns the item for key, or false when unknown.
func (c *Catalog) Item(key string) (*Item, bool) {
	it, ok := c.items[key]
	return it, ok
}

// Race returns the race for key, or false when unknown.
func (c *Catalog) Race(key string) (*Race, bool) {
	r, ok := c.races[key]
	return r, ok
}

// Quest returns the quest for key, or false when unknown.
func (c *Catalog) Quest(key string) (*Quest, bool) {
	q, ok := c.quests[key]
	return q, ok
}

// Location returns the location for key, or false when unknown.
func (c *Catalog) Location(key string) (*Location, bool) {
	l, ok := c.locations[key]
	return l, ok
}

// Locations returns every location keyed by id.
func (c *Catalog) Locations() map[string]*Location {
	return c.locations
}
