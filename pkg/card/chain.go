package card

import (
	"errors"
	"fmt"
)

// ErrCardChainCycle is returned when previous-card references form a loop.
var ErrCardChainCycle = errors.New("card supersession chain contains a cycle")

// LinkedCardList links cards into supersession chains and returns the head
// cards: those that no other input card supersedes. A card whose predecessor
// is missing from the input is still a head.
//
// For every link the older card is marked IsOutdated and the newer card's
// PreviousCard points at it, so whole chains are reachable from the heads.
// Heads keep their input order. Duplicate ids keep the first occurrence.
func LinkedCardList(cards []*Card) ([]*Card, error) {
	index := make(map[string]*Card, len(cards))
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		if c == nil {
			continue
		}
		if _, dup := index[c.ID]; dup {
			continue
		}
		index[c.ID] = c
		ids = append(ids, c.ID)
	}

	// Read pass: resolve every link before touching any card.
	predecessor := make(map[string]string, len(ids))
	superseded := make(map[string]bool, len(ids))
	for _, id := range ids {
		prevID := index[id].PreviousCardID
		if prevID == "" {
			continue
		}
		if _, ok := index[prevID]; ok {
			predecessor[id] = prevID
			superseded[prevID] = true
		}
	}

	if err := checkCycles(ids, predecessor); err != nil {
		return nil, err
	}

	// Write pass.
	heads := make([]*Card, 0, len(ids))
	for _, id := range ids {
		c := index[id]
		if prevID, ok := predecessor[id]; ok {
			prev := index[prevID]
			prev.IsOutdated = true
			c.PreviousCard = prev
		}
		if !superseded[id] {
			heads = append(heads, c)
		}
	}
	return heads, nil
}

// checkCycles walks each chain once. Every card has at most one predecessor,
// so a walk that reaches a card already on the current path has found a loop.
func checkCycles(ids []string, predecessor map[string]string) error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(ids))
	for _, start := range ids {
		var path []string
		id := start
		for {
			switch state[id] {
			case onPath:
				return fmt.Errorf("%w: card %s", ErrCardChainCycle, id)
			case done:
				id = ""
			}
			if id == "" {
				break
			}
			state[id] = onPath
			path = append(path, id)
			next, ok := predecessor[id]
			if !ok {
				break
			}
			id = next
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return nil
}
