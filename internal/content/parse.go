package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences убирает markdown-обёртку ``` или ```json вокруг ответа модели.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseRoadmap разбирает JSON-массив плана. Допускается и объект вида
// {"roadmap": [...]}, который возвращают модели в режиме json_object.
func ParseRoadmap(raw string) ([]RoadmapEntry, error) {
	body := StripFences(raw)
	var entries []RoadmapEntry
	if err := json.Unmarshal([]byte(body), &entries); err == nil {
		return entries, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
		return nil, fmt.Errorf("%w: roadmap: %v", ErrInvalidResponse, err)
	}
	for _, v := range wrapped {
		if err := json.Unmarshal(v, &entries); err == nil {
			return entries, nil
		}
	}
	return nil, fmt.Errorf("%w: roadmap: no array in object", ErrInvalidResponse)
}

// ParseArticle разбирает JSON статьи. Статья без текста считается битой.
func ParseArticle(raw string) (Article, error) {
	var a Article
	if err := json.Unmarshal([]byte(StripFences(raw)), &a); err != nil {
		return Article{}, fmt.Errorf("%w: article: %v", ErrInvalidResponse, err)
	}
	if a.Empty() {
		return Article{}, fmt.Errorf("%w: article: empty sections", ErrInvalidResponse)
	}
	return a, nil
}

// CleanHook обрезает пробелы и кавычки, в которые модель иногда заворачивает хук.
func CleanHook(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty hook", ErrInvalidResponse)
	}
	return s, nil
}
