package openai

import (
	"fmt"
	"strings"
)

const recipeResponseSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "category": {"type": "array", "items": {"type": "string"}},
    "preparation_time": {"type": "integer", "description": "minutes"},
    "cooking_time": {"type": "integer", "description": "minutes"},
    "ingredients": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "qt": {"type": "string"},
          "um": {"type": "string"}
        },
        "required": ["name"]
      }
    },
    "recipe_step": {"type": "array", "items": {"type": "string"}},
    "description": {"type": "string"},
    "diet": {"type": "string"},
    "technique": {"type": "string"},
    "language": {"type": "string"},
    "chef_advise": {"type": "string"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "nutritional_info": {"type": "array", "items": {"type": "string"}},
    "cuisine_type": {"type": "string"}
  },
  "required": ["title", "ingredients", "recipe_step"]
}`

const recipePromptTemplate = `You turn cooking video transcripts and social media captions into structured recipes.

Output ONLY valid JSON which complies with the schema below. Do not include any preamble or explanation.
Start your response with { and end it with }.

%s

Rules:
- Write every text field in the language with ISO code "%s" and set "language" to that code.
- Use only information present in the transcript or caption. Leave fields empty rather than inventing them.
- "qt" is the quantity as written (e.g. "200", "1/2", "q.b."); "um" is the unit (e.g. "g", "ml", "tbsp").
- "recipe_step" lists the steps in order, one action per entry.
- "preparation_time" and "cooking_time" are whole minutes; use 0 when unknown.
- "category" uses values such as: %s.
- "tags" are short lowercase keywords useful for search.`

var recipeCategories = []string{
	"appetizer", "first course", "main course", "side dish",
	"dessert", "bread", "sauce", "drink", "snack", "breakfast",
}

// buildSystemPrompt creates the extraction prompt for the given language.
func buildSystemPrompt(language string) string {
	return fmt.Sprintf(recipePromptTemplate,
		recipeResponseSchema,
		language,
		strings.Join(recipeCategories, ", "))
}

// buildUserMessage lays out the inputs the model should read.
func buildUserMessage(transcript, caption string) string {
	var b strings.Builder
	if caption != "" {
		b.WriteString("CAPTION:\n")
		b.WriteString(caption)
		b.WriteString("\n\n")
	}
	if transcript != "" {
		b.WriteString("TRANSCRIPT:\n")
		b.WriteString(transcript)
	}
	return strings.TrimSpace(b.String())
}

// buildImagePrompt describes the dish for the image model.
func buildImagePrompt(title, description string, ingredients []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A professional food photograph of %s", title)
	if description != "" {
		fmt.Fprintf(&b, ": %s", description)
	}
	if len(ingredients) > 0 {
		fmt.Fprintf(&b, ". Visible ingredients: %s", strings.Join(ingredients, ", "))
	}
	b.WriteString(". Natural light, plated on a simple table, no text.")
	return b.String()
}
