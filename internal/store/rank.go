package store

import (
	"container/heap"
	"sort"
)

// RankedProfile pairs a profile with the latency used for ordering.
type RankedProfile struct {
	Profile Profile
	Latency float64
	index   int
}

// latencyHeap is a max-heap on latency. The worst kept entry sits at the
// root and is the first to be evicted.
type latencyHeap []*RankedProfile

func (h latencyHeap) Len() int           { return len(h) }
func (h latencyHeap) Less(i, j int) bool { return h[i].Latency > h[j].Latency }
func (h latencyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *latencyHeap) Push(x interface{}) {
	item := x.(*RankedProfile)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *latencyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Leaderboard keeps the capacity fastest profiles seen so far.
type Leaderboard struct {
	capacity int
	h        latencyHeap
}

func NewLeaderboard(capacity int) *Leaderboard {
	h := make(latencyHeap, 0, capacity)
	heap.Init(&h)
	return &Leaderboard{capacity: capacity, h: h}
}

// Offer considers a profile for the board. Non-positive latencies mark
// failed probes and never rank.
func (l *Leaderboard) Offer(p Profile, latency float64) bool {
	if latency <= 0 {
		return false
	}
	if l.h.Len() < l.capacity {
		heap.Push(&l.h, &RankedProfile{Profile: p, Latency: latency})
		return true
	}
	if l.h.Len() > 0 && latency < l.h[0].Latency {
		heap.Pop(&l.h)
		heap.Push(&l.h, &RankedProfile{Profile: p, Latency: latency})
		return true
	}
	return false
}

// Len reports how many profiles the board currently holds.
func (l *Leaderboard) Len() int {
	return l.h.Len()
}

// Ranking returns the kept profiles, fastest first.
func (l *Leaderboard) Ranking() []RankedProfile {
	out := make([]RankedProfile, 0, l.h.Len())
	for _, item := range l.h {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Latency < out[j].Latency })
	return out
}
