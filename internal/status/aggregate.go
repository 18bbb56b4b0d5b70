// Package status derives per-node download status from a content tree and a
// ledger snapshot. Everything here is pure; the Watcher only decides when to
// recompute.
package status

import (
	"github.com/openedx/edxoffline/internal/course"
	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/ledger"
	"github.com/openedx/edxoffline/internal/mapper"
)

// Statuses maps node ids to their rollup. A fresh map is built on every
// recompute and never mutated afterwards.
type Statuses map[string]domain.AggregateStatus

// Get returns the status of id, not_downloaded when unknown.
func (s Statuses) Get(id string) domain.AggregateStatus {
	if st, ok := s[id]; ok {
		return st
	}
	return domain.AggregateStatus{State: domain.StateNotDownloaded}
}

// Recompute folds the snapshot over the tree bottom-up. The first pass lists
// nodes so that every node follows all of its descendants; the second folds
// children into parents in that order. Leaves without a record are sized by
// the variant pref would download.
func Recompute(tree *course.Tree, snap ledger.Snapshot, pref domain.VideoQuality) Statuses {
	order := postOrder(tree)

	out := make(Statuses, len(order))
	for _, n := range order {
		if n.IsLeaf() {
			out[n.ID] = leafStatus(n, snap, pref)
			continue
		}

		var agg domain.AggregateStatus
		for _, child := range n.Children {
			c := out[child]
			agg.DownloadingCount += c.DownloadingCount
			agg.DownloadedCount += c.DownloadedCount
			agg.TotalCount += c.TotalCount
			agg.RemainingBytes += c.RemainingBytes
			agg.TotalBytes += c.TotalBytes
		}
		agg.State = rollup(agg)
		out[n.ID] = agg
	}
	return out
}

// postOrder lists every node with descendants before ancestors. Reversing a
// pre-order walk gives exactly that.
func postOrder(tree *course.Tree) []*domain.ContentNode {
	pre := make([]*domain.ContentNode, 0, tree.Len())
	for _, top := range tree.Tops() {
		tree.Walk(top, func(n *domain.ContentNode) bool {
			pre = append(pre, n)
			return true
		})
	}
	for i, j := 0, len(pre)-1; i < j; i, j = i+1, j-1 {
		pre[i], pre[j] = pre[j], pre[i]
	}
	return pre
}

func leafStatus(n *domain.ContentNode, snap ledger.Snapshot, pref domain.VideoQuality) domain.AggregateStatus {
	if !n.IsDownloadable() {
		return domain.AggregateStatus{State: domain.StateNotDownloaded}
	}

	st := domain.AggregateStatus{State: domain.StateNotDownloaded, TotalCount: 1}
	size := mapper.PlannedSize(n.Download, pref)

	if rec, ok := snap.Get(n.ID); ok {
		st.State = rec.State
		if rec.ByteSize > 0 {
			size = rec.ByteSize
		}
		switch {
		case rec.State.IsDownloaded():
			st.DownloadedCount = 1
		case rec.State.IsWaitingOrDownloading():
			st.DownloadingCount = 1
		}
	}

	if size < 0 {
		size = 0
	}
	st.TotalBytes = size
	if st.DownloadedCount == 0 {
		st.RemainingBytes = size
	}
	return st
}

// rollup applies the structural state rules: anything in flight wins, then a
// complete set of downloadable leaves, otherwise nothing.
func rollup(agg domain.AggregateStatus) domain.DownloadState {
	switch {
	case agg.DownloadingCount > 0:
		return domain.StateDownloading
	case agg.TotalCount > 0 && agg.DownloadedCount == agg.TotalCount:
		return domain.StateDownloaded
	default:
		return domain.StateNotDownloaded
	}
}

// Summary totals a set of nodes the way the "download all" control needs.
type Summary struct {
	AllDownloadedOrDownloading bool  `json:"all_downloaded_or_downloading"`
	RemainingCount             int   `json:"remaining_count"`
	RemainingBytes             int64 `json:"remaining_bytes"`
	AllCount                   int   `json:"all_count"`
	AllBytes                   int64 `json:"all_bytes"`
}

// Summarize totals the given roots, defaulting to every subsection of the
// tree. Roots without downloadable content are ignored; with nothing
// downloadable at all the summary reports false.
func Summarize(tree *course.Tree, statuses Statuses, roots ...string) Summary {
	if len(roots) == 0 {
		for _, n := range tree.NodesOfKind(domain.KindSequential) {
			roots = append(roots, n.ID)
		}
		if len(roots) == 0 {
			roots = []string{tree.Root()}
		}
	}

	sum := Summary{AllDownloadedOrDownloading: true}
	for _, id := range roots {
		st := statuses.Get(id)
		if st.TotalCount == 0 {
			continue
		}
		if st.State != domain.StateDownloaded && st.State != domain.StateDownloading {
			sum.AllDownloadedOrDownloading = false
		}
		sum.AllCount += st.TotalCount
		sum.AllBytes += st.TotalBytes
		sum.RemainingCount += st.TotalCount - st.DownloadedCount
		sum.RemainingBytes += st.RemainingBytes
	}
	if sum.AllCount == 0 {
		sum.AllDownloadedOrDownloading = false
	}
	return sum
}
