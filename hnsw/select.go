package hnsw

// selectNeighbors picks up to m candidates according to the configured policy.
// cands must be sorted closest first; the returned slice is too.
func (h *Index) selectNeighbors(cands []candidate, m int) []candidate {
	if len(cands) <= m {
		return cands
	}
	if h.params.Selection == SelectSimple {
		return selectM(cands, m)
	}
	return h.selectHeuristic(cands, m)
}

// selectM chooses the m closest candidates.
func selectM(cands []candidate, m int) []candidate {
	if len(cands) > m {
		return cands[:m]
	}
	return cands
}

// selectHeuristic walks candidates closest first and accepts one only when it is
// closer to the base vector than to every neighbor accepted so far. Rejected
// candidates backfill the result, closest first, until m is reached.
func (h *Index) selectHeuristic(cands []candidate, m int) []candidate {
	selected := make([]candidate, 0, m)
	var discarded []candidate

	for _, c := range cands {
		if len(selected) >= m {
			break
		}
		vec := h.nodes[c.ref].Vector
		diverse := true
		for _, s := range selected {
			if h.distance(vec, h.nodes[s.ref].Vector) < c.dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}

	for _, c := range discarded {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	sortCandidates(selected)
	return selected
}
