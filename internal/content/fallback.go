package content

import (
	"fmt"
	"strings"
)

var defaultConcepts = map[string][]string{
	"DSA": {
		"Arrays and Basic Operations",
		"Two Pointers Technique",
		"Sliding Window",
		"Hash Maps and Sets",
		"Binary Search",
		"Linked Lists",
		"Stacks",
		"Queues",
		"Trees - Binary Trees",
		"Binary Search Trees",
		"Tree Traversals (BFS/DFS)",
		"Heaps and Priority Queues",
		"Graphs - Representation",
		"Graph BFS",
		"Graph DFS",
		"Dijkstra's Algorithm",
		"Dynamic Programming - Basics",
		"DP - Memoization",
		"DP - Tabulation",
		"Backtracking",
		"Greedy Algorithms",
		"Sorting Algorithms",
		"Merge Sort",
		"Quick Sort",
		"Trie Data Structure",
		"Union Find",
		"Segment Trees",
		"Bit Manipulation",
		"String Algorithms",
		"Advanced Problem Solving",
	},
	"System Design": {
		"System Design Basics",
		"Scalability Fundamentals",
		"Load Balancing",
		"Caching Strategies",
		"Database Sharding",
		"CAP Theorem",
		"Consistent Hashing",
		"Message Queues",
		"Microservices Architecture",
		"API Design",
		"Rate Limiting",
		"CDN and Edge Computing",
		"Database Replication",
		"SQL vs NoSQL",
		"Distributed Systems Basics",
		"Consensus Algorithms",
		"Event-Driven Architecture",
		"Real-time Systems",
		"Search Systems",
		"Notification Systems",
		"URL Shortener Design",
		"Twitter/Feed Design",
		"Chat Application Design",
		"Video Streaming Design",
		"E-commerce Design",
		"Ride-sharing Design",
		"Payment Systems",
		"Monitoring and Logging",
		"Security Best Practices",
		"System Design Interview Tips",
	},
}

// DefaultConcepts встроенный список для темы; неизвестные темы получают DSA.
func DefaultConcepts(topic string) []string {
	if c, ok := defaultConcepts[topic]; ok {
		return c
	}
	return defaultConcepts["DSA"]
}

// BandDifficulty сложность по позиции i (с нуля) в программе из n дней:
// первая треть easy, вторая medium, остальное hard.
func BandDifficulty(i, n int) string {
	switch {
	case i < n/3:
		return "easy"
	case i < 2*n/3:
		return "medium"
	default:
		return "hard"
	}
}

// DefaultRoadmap детерминированный план на n дней. Список концептов
// повторяется по кругу, повторы помечаются " (Review)", " (Review 2)" и т.д.
func DefaultRoadmap(topic string, n int) []RoadmapEntry {
	concepts := DefaultConcepts(topic)
	out := make([]RoadmapEntry, 0, n)
	for i := 0; i < n; i++ {
		title := concepts[i%len(concepts)]
		switch round := i / len(concepts); {
		case round == 1:
			title += " (Review)"
		case round > 1:
			title += fmt.Sprintf(" (Review %d)", round)
		}
		out = append(out, RoadmapEntry{
			Day:        i + 1,
			Concept:    title,
			Difficulty: BandDifficulty(i, n),
			ReadTime:   10 + (i%5)*2,
		})
	}
	return out
}

// FallbackHook текст, который уходит пользователю, если хук не сгенерировался.
func FallbackHook(concept string) string {
	return "🎯 Today's concept: " + concept + "\n\nWant to learn about this? Reply 'YES'"
}

// PlaceholderArticle заглушка статьи на время, пока генерация недоступна.
func PlaceholderArticle(concept string) Article {
	return Article{
		ELI5:      "We're working on the explanation for " + concept + ". Check back soon!",
		Technical: "Content is being generated...",
		RealWorld: "Examples coming soon...",
	}
}

// Empty true, если в статье нет ни одного текстового раздела.
func (a Article) Empty() bool {
	return strings.TrimSpace(a.ELI5) == "" && strings.TrimSpace(a.Technical) == "" && strings.TrimSpace(a.RealWorld) == ""
}
