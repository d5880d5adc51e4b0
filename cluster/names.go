package cluster

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// NamesFromTopics derives one display name per cluster from the topics of
// its member conversations. For each cluster the two most frequent topics
// (case-insensitive, ties broken by the lexicographically smallest topic)
// are joined as "First & Second"; a cluster with a single distinct topic
// uses it alone, and a cluster with no topics falls back to "Cluster N".
func NamesFromTopics(assignments []int, topics [][]string, k int) ([]string, error) {
	if len(assignments) != len(topics) {
		return nil, fmt.Errorf("names: %d assignments but %d topic lists", len(assignments), len(topics))
	}

	counts := make([]map[string]int, k)
	for i := range counts {
		counts[i] = make(map[string]int)
	}
	for i, a := range assignments {
		if a < 0 || a >= k {
			return nil, fmt.Errorf("names: assignment %d out of range [0, %d)", a, k)
		}
		for _, topic := range topics[i] {
			topic = strings.ToLower(strings.TrimSpace(topic))
			if topic == "" {
				continue
			}
			counts[a][topic]++
		}
	}

	names := make([]string, k)
	for id, topicCounts := range counts {
		top := topTopics(topicCounts, 2)
		switch len(top) {
		case 0:
			names[id] = fmt.Sprintf("Cluster %d", id)
		case 1:
			names[id] = titleCase(top[0])
		default:
			names[id] = titleCase(top[0]) + " & " + titleCase(top[1])
		}
	}
	return names, nil
}

// topTopics returns up to limit topics ordered by descending frequency,
// ties broken by the lexicographically smallest topic string.
func topTopics(counts map[string]int, limit int) []string {
	topics := make([]string, 0, len(counts))
	for topic := range counts {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(a, b int) bool {
		if counts[topics[a]] != counts[topics[b]] {
			return counts[topics[a]] > counts[topics[b]]
		}
		return topics[a] < topics[b]
	})
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics
}

// titleCase upper-cases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
