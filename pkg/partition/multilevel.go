package partition

import (
	"math/rand"
	"sort"
)

// coarsen contracts the graph by heavy-edge matching: vertices are visited
// in random order and each unmatched vertex merges with the unmatched
// neighbor sharing the heaviest edge. Returns the coarse graph and the
// fine-to-coarse vertex map.
func coarsen(g *Graph, rng *rand.Rand) (*Graph, []int32) {
	n := g.NumVertices()
	match := make([]int32, n)
	for i := range match {
		match[i] = -1
	}

	order := rng.Perm(n)
	numCoarse := int32(0)
	cmap := make([]int32, n)
	for _, vi := range order {
		v := int32(vi)
		if match[v] >= 0 {
			continue
		}
		best := int32(-1)
		bestWgt := 0.0
		for i := g.XAdj[v]; i < g.XAdj[v+1]; i++ {
			u := g.AdjNCY[i]
			if match[u] < 0 && u != v && g.AdjWgt[i] > bestWgt {
				best = u
				bestWgt = g.AdjWgt[i]
			}
		}
		if best >= 0 {
			match[v] = best
			match[best] = v
			cmap[v] = numCoarse
			cmap[best] = numCoarse
		} else {
			match[v] = v
			cmap[v] = numCoarse
		}
		numCoarse++
	}

	// Build the coarse graph: merge matched pairs, aggregate parallel
	// edges, drop intra-pair edges (they become irrelevant self loops).
	vwgt := make([]int32, numCoarse)
	for v := int32(0); int(v) < n; v++ {
		vwgt[cmap[v]] += g.vertexWeight(v)
	}

	neighbors := make([]map[int32]float64, numCoarse)
	for v := int32(0); int(v) < n; v++ {
		cv := cmap[v]
		for i := g.XAdj[v]; i < g.XAdj[v+1]; i++ {
			cu := cmap[g.AdjNCY[i]]
			if cu == cv {
				continue
			}
			if neighbors[cv] == nil {
				neighbors[cv] = make(map[int32]float64)
			}
			neighbors[cv][cu] += g.AdjWgt[i]
		}
	}

	xadj := make([]int32, numCoarse+1)
	for i := int32(0); i < numCoarse; i++ {
		xadj[i+1] = xadj[i] + int32(len(neighbors[i]))
	}
	adjncy := make([]int32, xadj[numCoarse])
	adjwgt := make([]float64, xadj[numCoarse])
	for i := int32(0); i < numCoarse; i++ {
		keys := make([]int32, 0, len(neighbors[i]))
		for k := range neighbors[i] {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
		base := xadj[i]
		for j, k := range keys {
			adjncy[base+int32(j)] = k
			adjwgt[base+int32(j)] = neighbors[i][k]
		}
	}

	return &Graph{XAdj: xadj, AdjNCY: adjncy, AdjWgt: adjwgt, VWgt: vwgt}, cmap
}

// growInitialPartition produces a first k-way assignment on the coarsest
// graph by greedy region growing: each part is grown breadth-first from a
// random unassigned seed until it reaches the ideal weight. Leftover
// vertices go to the lightest part.
func growInitialPartition(g *Graph, cfg Config, rng *rand.Rand) []int32 {
	n := g.NumVertices()
	parts := make([]int32, n)
	for i := range parts {
		parts[i] = -1
	}
	partWeight := make([]int64, cfg.NumParts)
	target := float64(g.totalVertexWeight()) / float64(cfg.NumParts)

	order := rng.Perm(n)
	cursor := 0
	nextSeed := func() int32 {
		for cursor < n {
			v := int32(order[cursor])
			cursor++
			if parts[v] < 0 {
				return v
			}
		}
		return -1
	}

	for p := int32(0); p < int32(cfg.NumParts)-1; p++ {
		seed := nextSeed()
		if seed < 0 {
			break
		}
		queue := []int32{seed}
		parts[seed] = p
		partWeight[p] = int64(g.vertexWeight(seed))
		for len(queue) > 0 && float64(partWeight[p]) < target {
			v := queue[0]
			queue = queue[1:]
			for i := g.XAdj[v]; i < g.XAdj[v+1]; i++ {
				u := g.AdjNCY[i]
				if parts[u] >= 0 {
					continue
				}
				parts[u] = p
				partWeight[p] += int64(g.vertexWeight(u))
				queue = append(queue, u)
				if float64(partWeight[p]) >= target {
					break
				}
			}
		}
	}

	// Everything still unassigned drains into the lightest part, one
	// vertex at a time so no single part absorbs the whole remainder.
	for v := int32(0); int(v) < n; v++ {
		if parts[v] >= 0 {
			continue
		}
		lightest := int32(0)
		for p := int32(1); p < int32(cfg.NumParts); p++ {
			if partWeight[p] < partWeight[lightest] {
				lightest = p
			}
		}
		parts[v] = lightest
		partWeight[lightest] += int64(g.vertexWeight(v))
	}

	// Guarantee no part is empty: seed each empty part with a boundary
	// vertex stolen from the heaviest part.
	for p := int32(0); p < int32(cfg.NumParts); p++ {
		if partWeight[p] > 0 {
			continue
		}
		heaviest := int32(0)
		for q := int32(1); q < int32(cfg.NumParts); q++ {
			if partWeight[q] > partWeight[heaviest] {
				heaviest = q
			}
		}
		for v := int32(0); int(v) < n; v++ {
			if parts[v] == heaviest {
				parts[v] = p
				w := int64(g.vertexWeight(v))
				partWeight[heaviest] -= w
				partWeight[p] += w
				break
			}
		}
	}

	return parts
}

// refine performs greedy boundary refinement sweeps: each vertex may move
// to the neighboring part that most reduces the edge cut, provided the
// destination stays within the balance caps. Sweeps stop early once a full
// pass makes no move.
func refine(g *Graph, parts []int32, cfg Config, rng *rand.Rand) {
	n := g.NumVertices()
	bal := newBalance(g, parts, cfg)
	gains := make(map[int32]float64, 8)

	for pass := 0; pass < cfg.RefinementPasses; pass++ {
		moved := 0
		order := rng.Perm(n)
		for _, vi := range order {
			v := int32(vi)
			home := parts[v]
			// Never empty a part.
			if bal.partWeight[home] <= int64(g.vertexWeight(v)) {
				continue
			}

			for k := range gains {
				delete(gains, k)
			}
			internal := 0.0
			for i := g.XAdj[v]; i < g.XAdj[v+1]; i++ {
				p := parts[g.AdjNCY[i]]
				if p == home {
					internal += g.AdjWgt[i]
				} else {
					gains[p] += g.AdjWgt[i]
				}
			}
			if len(gains) == 0 {
				continue // interior vertex
			}

			candidates := make([]int32, 0, len(gains))
			for p := range gains {
				candidates = append(candidates, p)
			}
			sort.Slice(candidates, func(a, b int) bool { return candidates[a] < candidates[b] })

			best := int32(-1)
			bestGain := 0.0
			vw := g.vertexWeight(v)
			load := g.edgeLoad(v)
			for _, p := range candidates {
				gain := gains[p] - internal
				if gain <= bestGain || gain <= 0 {
					continue
				}
				if !bal.admits(p, vw, load) {
					continue
				}
				best = p
				bestGain = gain
			}
			if best >= 0 {
				parts[v] = best
				bal.move(home, best, vw, load)
				moved++
			}
		}
		if moved == 0 {
			break
		}
	}
}
