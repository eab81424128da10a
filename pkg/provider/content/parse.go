package content

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ParseLesson extracts and validates a [Lesson] from raw model output. Models
// routinely wrap the JSON payload in prose or a markdown fence, so the parser
// locates the outermost JSON object before decoding. Any failure wraps
// [ErrMalformed].
func ParseLesson(raw string, concept string) (*Lesson, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var lesson Lesson
	if err := json.Unmarshal(payload, &lesson); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}

	if lesson.Concept == "" {
		lesson.Concept = concept
	}
	if err := Validate(&lesson); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// Keep the timeline monotonic regardless of model ordering.
	sort.SliceStable(lesson.Subtitles, func(i, j int) bool {
		return lesson.Subtitles[i].TimestampSeconds < lesson.Subtitles[j].TimestampSeconds
	})

	return &lesson, nil
}

// Validate checks the fields a lesson must carry before it may be assembled
// into a scene. Partial structures are rejected here rather than surfacing
// undefined content downstream.
func Validate(l *Lesson) error {
	if l == nil {
		return fmt.Errorf("lesson is nil")
	}
	if strings.TrimSpace(l.Narration) == "" {
		return fmt.Errorf("narration is empty")
	}
	if len(l.Objectives) == 0 {
		return fmt.Errorf("no objectives")
	}
	if len(l.Facts) == 0 {
		return fmt.Errorf("no facts")
	}
	for i, cue := range l.Subtitles {
		if cue.TimestampSeconds < 0 {
			return fmt.Errorf("subtitles[%d] has negative timestamp %.2f", i, cue.TimestampSeconds)
		}
		if strings.TrimSpace(cue.Text) == "" {
			return fmt.Errorf("subtitles[%d] has empty text", i)
		}
	}
	return nil
}

// extractJSON returns the outermost balanced JSON object in s. It tolerates
// leading/trailing prose and ```json fences.
func extractJSON(s string) ([]byte, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object")
}
