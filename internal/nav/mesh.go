// Package nav provides the walkable-region navigation mesh consumed by the
// simulation: straight-path validity checks, waypoint path-finding, and
// random patrol destinations. The mesh is read-only after load and shared by
// every entity in a room.
package nav

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/emberfall/emberfall/server/internal/spatial"
)

// sample step in world units when validating a straight segment.
const checkStep = 0.25

// Region is one convex walkable rectangle on the XZ plane.
type Region struct {
	ID   string  `json:"id"`
	MinX float64 `json:"min_x"`
	MinZ float64 `json:"min_z"`
	MaxX float64 `json:"max_x"`
	MaxZ float64 `json:"max_z"`
	Y    float64 `json:"y"` // walk height inside the region
}

// Center returns the region centroid at walk height.
func (r *Region) Center() spatial.Vec3 {
	return spatial.Vec3{
		X: (r.MinX + r.MaxX) / 2,
		Y: r.Y,
		Z: (r.MinZ + r.MaxZ) / 2,
	}
}

func (r *Region) contains(x, z float64) bool {
	return x >= r.MinX && x <= r.MaxX && z >= r.MinZ && z <= r.MaxZ
}

// Mesh is a loaded navigation mesh: regions plus their adjacency graph.
type Mesh struct {
	regions []Region
	adj     [][]int
}

type meshFile struct {
	Regions []Region `json:"regions"`
}

// Load reads a mesh from a JSON file and computes region adjacency.
func Load(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh file %s: %w", path, err)
	}

	var mf meshFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse mesh file %s: %w", path, err)
	}
	if len(mf.Regions) == 0 {
		return nil, fmt.Errorf("mesh file %s has no regions", path)
	}

	m := &Mesh{regions: mf.Regions}
	m.buildAdjacency()
	return m, nil
}

// NewMesh builds a mesh directly from regions. Tests use this to avoid files.
func NewMesh(regions []Region) *Mesh {
	m := &Mesh{regions: regions}
	m.buildAdjacency()
	return m
}

// buildAdjacency links every pair of regions that touch or overlap.
func (m *Mesh) buildAdjacency() {
	const eps = 1e-6
	m.adj = make([][]int, len(m.regions))
	for i := range m.regions {
		for j := i + 1; j < len(m.regions); j++ {
			a, b := &m.regions[i], &m.regions[j]
			overlapX := a.MinX <= b.MaxX+eps && b.MinX <= a.MaxX+eps
			overlapZ := a.MinZ <= b.MaxZ+eps && b.MinZ <= a.MaxZ+eps
			if overlapX && overlapZ {
				m.adj[i] = append(m.adj[i], j)
				m.adj[j] = append(m.adj[j], i)
			}
		}
	}
}

// RegionAt returns the index of the region containing the XZ point, or false
// when the point is outside every region.
func (m *Mesh) RegionAt(p spatial.Vec3) (int, bool) {
	for i := range m.regions {
		if m.regions[i].contains(p.X, p.Z) {
			return i, true
		}
	}
	return 0, false
}

// CheckPath reports whether the straight segment from a to b stays on the
// mesh. Every sampled point along the segment must fall inside some region.
func (m *Mesh) CheckPath(a, b spatial.Vec3) bool {
	dist := spatial.Distance(a, b)
	steps := int(math.Ceil(dist/checkStep)) + 1

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := spatial.Vec3{
			X: a.X + (b.X-a.X)*t,
			Z: a.Z + (b.Z-a.Z)*t,
		}
		if _, ok := m.RegionAt(p); !ok {
			return false
		}
	}
	return true
}

// FindPath returns waypoints from a to b: the centers of the regions along
// the cheapest region-to-region route, ending at b itself. Returns nil when
// either endpoint is off the mesh or no route exists.
func (m *Mesh) FindPath(a, b spatial.Vec3) []spatial.Vec3 {
	start, ok := m.RegionAt(a)
	if !ok {
		return nil
	}
	goal, ok := m.RegionAt(b)
	if !ok {
		return nil
	}

	if start == goal {
		return []spatial.Vec3{b}
	}

	route := m.routeRegions(start, goal)
	if route == nil {
		return nil
	}

	// Skip the region we stand in; walk region centers then the destination.
	waypoints := make([]spatial.Vec3, 0, len(route))
	for _, idx := range route[1:] {
		waypoints = append(waypoints, m.regions[idx].Center())
	}
	waypoints = append(waypoints, b)
	return waypoints
}

// RandomRegion returns the centroid of a uniformly chosen region. Patrol
// destination rolls use this.
func (m *Mesh) RandomRegion(rng *rand.Rand) spatial.Vec3 {
	idx := rng.Intn(len(m.regions))
	return m.regions[idx].Center()
}

// RegionCount returns the number of walkable regions.
func (m *Mesh) RegionCount() int {
	return len(m.regions)
}
