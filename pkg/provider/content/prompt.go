package content

import "fmt"

// SystemPrompt is the instruction shared by all lesson-generation backends.
// The JSON schema it describes matches [Lesson]; ParseLesson tolerates models
// that wrap the object in prose anyway.
const SystemPrompt = `You are an educational content writer for an immersive 3D learning app.
Given a concept, respond with a single JSON object using exactly these keys:
  "concept": the concept string,
  "objectives": 2-4 short learning objectives,
  "facts": 3-6 objects {"text", "citation"} with reputable citations,
  "callouts": 0-3 short attention-grabbing notes,
  "narration": a 60-90 second spoken narration script,
  "subtitles": the narration split into cues [{"timestampSeconds", "text"}],
  "sources": 2-4 further-reading URLs.
Respond with the JSON object only.`

// UserPrompt renders the per-request message for a concept.
func UserPrompt(concept string) string {
	return fmt.Sprintf("Create the lesson for the concept: %q", concept)
}
