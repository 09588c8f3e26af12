package vending

import (
	"fmt"
	"sort"

	"github.com/kilianp07/vending/core/model"
)

// RoutingTable maps item ids to shelves through disjoint id ranges.
type RoutingTable struct {
	ranges     []ShelfRange
	descending bool
}

// NewRoutingTable validates the ranges and returns a table visiting batches
// in the given order ("desc" or "asc").
func NewRoutingTable(ranges []ShelfRange, order string) (*RoutingTable, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("vending: routing table is empty")
	}
	sorted := append([]ShelfRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Low < sorted[j].Low })
	seen := make(map[model.ShelfID]bool, len(sorted))
	for i, r := range sorted {
		if r.Shelf <= 0 {
			return nil, fmt.Errorf("vending: invalid shelf id %d", r.Shelf)
		}
		if seen[r.Shelf] {
			return nil, fmt.Errorf("vending: shelf %d listed twice", r.Shelf)
		}
		seen[r.Shelf] = true
		if r.Low <= 0 || r.High < r.Low {
			return nil, fmt.Errorf("vending: invalid range %d-%d for shelf %d", r.Low, r.High, r.Shelf)
		}
		if i > 0 && r.Low <= sorted[i-1].High {
			return nil, fmt.Errorf("vending: shelf %d range overlaps shelf %d", r.Shelf, sorted[i-1].Shelf)
		}
	}
	switch order {
	case OrderDescending, "":
		return &RoutingTable{ranges: sorted, descending: true}, nil
	case OrderAscending:
		return &RoutingTable{ranges: sorted}, nil
	default:
		return nil, fmt.Errorf("vending: unknown batch order %q", order)
	}
}

// ShelfFor returns the shelf holding itemID.
func (r *RoutingTable) ShelfFor(itemID int) (model.ShelfID, bool) {
	for _, rg := range r.ranges {
		if itemID >= rg.Low && itemID <= rg.High {
			return rg.Shelf, true
		}
	}
	return 0, false
}

// Shelves lists every configured shelf in ascending id order.
func (r *RoutingTable) Shelves() []model.ShelfID {
	out := make([]model.ShelfID, 0, len(r.ranges))
	for _, rg := range r.ranges {
		out = append(out, rg.Shelf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Partition groups items into per-shelf batches. Items outside every range
// or with a non-positive quantity are dropped. Input order is kept within a
// batch and batches follow the table's shelf order.
func (r *RoutingTable) Partition(items []model.ItemRef) (model.OrderQueue, error) {
	byShelf := make(map[model.ShelfID][]model.ItemRef)
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		shelf, ok := r.ShelfFor(it.ID)
		if !ok {
			continue
		}
		byShelf[shelf] = append(byShelf[shelf], it)
	}
	if len(byShelf) == 0 {
		return nil, ErrInvalidOrder
	}
	shelves := r.Shelves()
	if r.descending {
		sort.Slice(shelves, func(i, j int) bool { return shelves[i] > shelves[j] })
	}
	queue := make(model.OrderQueue, 0, len(byShelf))
	for _, s := range shelves {
		if batch := byShelf[s]; len(batch) > 0 {
			queue = append(queue, model.ShelfBatch{Shelf: s, Items: batch})
		}
	}
	return queue, nil
}
