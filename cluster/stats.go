package cluster

import (
	"sort"

	"github.com/poiesic/cortex/core"
)

// Statistics summarizes cluster membership across a set of conversations.
// Unclustered conversations are excluded from counts and from the
// percentage base. Results come back ordered by cluster id.
func Statistics(conversations []*core.Conversation) []core.ClusterStat {
	counts := make(map[int]*core.ClusterStat)
	clustered := 0
	for _, conv := range conversations {
		if !conv.HasCluster() {
			continue
		}
		clustered++
		stat, ok := counts[conv.ClusterId]
		if !ok {
			stat = &core.ClusterStat{
				ClusterId: conv.ClusterId,
				Name:      conv.ClusterName,
			}
			counts[conv.ClusterId] = stat
		}
		stat.Count++
	}

	stats := make([]core.ClusterStat, 0, len(counts))
	for _, stat := range counts {
		if clustered > 0 {
			stat.Percentage = float64(stat.Count) / float64(clustered) * 100
		}
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(a, b int) bool {
		return stats[a].ClusterId < stats[b].ClusterId
	})
	return stats
}
