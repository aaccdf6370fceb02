package content

import "fmt"

// RoadmapPrompt запрос плана на durationDays дней.
func RoadmapPrompt(topic string, durationDays int, userLevel string) string {
	return fmt.Sprintf(`Create a %d-day learning roadmap for %s.
User Level: %s

Requirements:
- go from fundamentals to advanced concepts
- exactly one focused concept per day
- mix theory with practical, real-world applications

Return a JSON array with exactly %d elements:
[{"day": 1, "concept": "Concept Name", "difficulty": "easy|medium|hard", "read_time": 10}]

Return ONLY the JSON array.`, durationDays, topic, userLevel, durationDays)
}

// HookPrompt запрос короткого сообщения для мессенджера.
func HookPrompt(r HookRequest) string {
	return fmt.Sprintf(`You write short, engaging interview prep messages for a chat app.

Topic: %s
Concept: %s
Difficulty: %s
User Level: %s

Write one message of 50-150 words that opens with a concrete problem a large tech
company had, hints that this concept solves it, uses exactly one emoji and ends by
asking the reader to reply 'YES' to learn more.

Return only the message text.`, r.Topic, r.Concept, r.Difficulty, r.UserLevel)
}

// ArticlePrompt запрос статьи в JSON.
func ArticlePrompt(r ArticleRequest) string {
	background := "Intermediate developer preparing for interviews"
	if r.SkillSummary != nil && *r.SkillSummary != "" {
		background = *r.SkillSummary
	}
	return fmt.Sprintf(`You are an expert software engineer writing educational content.

Topic: %s
Concept: %s
Reader background: %s

Sections:
1. eli5: simple analogies, 2-3 short paragraphs, no jargon.
2. technical: terminology, trade-offs, complexity analysis.
3. code_snippets: production-quality Python with comments.
4. real_world: how large companies use it, edge cases.
5. practice: 2-3 related interview questions.

Return ONLY valid JSON:
{"eli5": "...", "technical": "...",
 "code_snippets": [{"language": "Python", "code": "...", "explanation": "..."}],
 "real_world": "...",
 "practice": [{"question": "...", "difficulty": "easy|medium|hard", "link": "optional url"}]}`,
		r.Topic, r.Concept, background)
}
