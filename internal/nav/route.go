package nav

import (
	"container/heap"

	"github.com/emberfall/emberfall/server/internal/spatial"
)

type routeNode struct {
	region int
	g      float64
	f      float64
	index  int
	parent *routeNode
}

type routeQueue []*routeNode

func (pq routeQueue) Len() int { return len(pq) }

func (pq routeQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }

func (pq routeQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *routeQueue) Push(x any) {
	n := len(*pq)
	item := x.(*routeNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *routeQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// routeRegions runs A* over the region adjacency graph using center-to-center
// distance for both edge cost and heuristic. Returns the region index chain
// from start to goal inclusive, or nil when unreachable.
func (m *Mesh) routeRegions(start, goal int) []int {
	goalCenter := m.regions[goal].Center()
	heuristic := func(region int) float64 {
		return spatial.Distance(m.regions[region].Center(), goalCenter)
	}

	open := &routeQueue{}
	heap.Init(open)
	heap.Push(open, &routeNode{region: start, g: 0, f: heuristic(start)})

	gScore := map[int]float64{start: 0}
	closed := make(map[int]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*routeNode)
		if current.region == goal {
			var route []int
			for n := current; n != nil; n = n.parent {
				route = append(route, n.region)
			}
			// reverse into start→goal order
			for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
				route[i], route[j] = route[j], route[i]
			}
			return route
		}

		if _, seen := closed[current.region]; seen {
			continue
		}
		closed[current.region] = struct{}{}

		currentCenter := m.regions[current.region].Center()
		for _, next := range m.adj[current.region] {
			if _, seen := closed[next]; seen {
				continue
			}
			cost := current.g + spatial.Distance(currentCenter, m.regions[next].Center())
			if best, ok := gScore[next]; ok && cost >= best {
				continue
			}
			gScore[next] = cost
			heap.Push(open, &routeNode{
				region: next,
				g:      cost,
				f:      cost + heuristic(next),
				parent: current,
			})
		}
	}

	return nil
}
