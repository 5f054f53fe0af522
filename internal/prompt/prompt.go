// Package prompt builds every instruction string sent to the model gateway.
// Each function is a pure transform of its inputs: no I/O, no state, and the
// same input always yields byte-identical output. Missing fields render as "N/A".
package prompt

import (
	"fmt"
	"strings"

	"github.com/Yates-Labs/beanstalk/internal/engine"
)

// Placeholder is substituted for any missing or empty input field.
const Placeholder = "N/A"

const audience = "children aged 5-10"

// orNA returns s, or Placeholder when s is blank.
func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func writeStory(b *strings.Builder, story engine.Story) {
	b.WriteString(fmt.Sprintf("**Title:** %s\n\n", orNA(story.Title)))
	b.WriteString(fmt.Sprintf("**Story:**\n%s\n\n", orNA(story.Body)))
	b.WriteString(fmt.Sprintf("**Moral:** %s\n\n", orNA(story.Moral)))
}

func writeAvoid(b *strings.Builder, avoid []string) {
	titles := make([]string, 0, len(avoid))
	for _, t := range avoid {
		if strings.TrimSpace(t) != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		return
	}
	b.WriteString("# Stories Already Told\n\n")
	b.WriteString("These similar stories were told recently. Do not repeat their plots, titles or characters:\n")
	for _, t := range titles {
		b.WriteString(fmt.Sprintf("- %s\n", t))
	}
	b.WriteString("\n")
}

const storyContract = `Respond ONLY with valid JSON:
{
    "title": "an apt title for the story",
    "story": "the full story, with paragraphs separated by blank lines",
    "moral": "simple life lesson naturally embedded in the story"
}
`

// Classify asks the model whether raw user input is a usable story seed.
func Classify(raw string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are an intelligent input processor for a bedtime story generator for %s.\n\n", audience))
	b.WriteString(fmt.Sprintf("Analyze this user input: %q\n\n", raw))

	b.WriteString("Decide whether it is a meaningful story request:\n")
	b.WriteString("- Does it contain story elements (characters, settings, actions, themes)?\n")
	b.WriteString("- Is it coherent enough to build a bedtime story around?\n")
	b.WriteString("- Is it appropriate for young children at bedtime?\n\n")

	b.WriteString("# Edge Cases\n\n")
	b.WriteString("- Random gibberish like \"sdfdfgg\" = INVALID\n")
	b.WriteString("- Single words like \"dragon\" = VALID (expand to \"A story about a dragon\")\n")
	b.WriteString("- Very vague like \"something fun\" = VALID\n")
	b.WriteString("- Frightening, violent or sad themes = INVALID (gently redirect)\n")
	b.WriteString("- Copyrighted characters like \"Spider-Man\" = VALID but replace with \"a superhero\"\n\n")

	b.WriteString("If VALID: extract and enhance the core story elements into one clear story request.\n")
	b.WriteString("If INVALID: write a gentle, encouraging re-prompt that includes a specific example.\n\n")

	b.WriteString("Respond ONLY with valid JSON:\n")
	b.WriteString("{\n")
	b.WriteString("    \"valid\": true or false,\n")
	b.WriteString("    \"story_elements\": \"enhanced story request (empty if invalid)\",\n")
	b.WriteString("    \"suggestion\": \"encouraging re-prompt with example (empty if valid)\"\n")
	b.WriteString("}\n\n")

	b.WriteString("Examples:\n")
	b.WriteString("Input: \"sdfdfgg\" -> {\"valid\": false, \"story_elements\": \"\", \"suggestion\": \"I didn't quite catch that! Try something like: 'A story about a friendly robot who learns to paint'\"}\n")
	b.WriteString("Input: \"dragon\" -> {\"valid\": true, \"story_elements\": \"A story about a dragon\", \"suggestion\": \"\"}\n")

	return b.String()
}

// Outline asks the model to plan a story before writing it.
func Outline(request string, avoid []string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are an imaginative story planner who has outlined hundreds of bedtime stories that %s love.\n\n", audience))
	b.WriteString("# Story Request\n\n")
	b.WriteString(orNA(request) + "\n\n")
	writeAvoid(&b, avoid)

	b.WriteString("# Task\n\n")
	b.WriteString("Commit to a concrete plan before any prose is written:\n")
	b.WriteString("1. Choose a theme that fits the request (friendship, courage, curiosity, kindness)\n")
	b.WriteString("2. Use the character from the request as protagonist, or invent a child-aged one with a clear personality\n")
	b.WriteString("3. Add one to three helpers with distinct roles\n")
	b.WriteString("4. Pick a vivid but cozy setting and a small, gentle conflict\n")
	b.WriteString("5. List 4-6 key events in order, ending with a calm, sleepy resolution\n\n")

	b.WriteString("Respond ONLY with valid JSON:\n")
	b.WriteString("{\n")
	b.WriteString("    \"protagonist\": {\"name\": \"\", \"age\": \"\", \"personality\": \"\", \"type\": \"\"},\n")
	b.WriteString("    \"helpers\": [{\"name\": \"\", \"type\": \"\", \"role\": \"\"}],\n")
	b.WriteString("    \"setting\": \"\",\n")
	b.WriteString("    \"conflict\": \"\",\n")
	b.WriteString("    \"key_events\": [\"\"],\n")
	b.WriteString("    \"resolution\": \"\",\n")
	b.WriteString("    \"theme\": \"\"\n")
	b.WriteString("}\n")

	return b.String()
}

// WriteFromOutline asks the model to turn an outline into the finished story.
func WriteFromOutline(request string, outline engine.StoryOutline) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are an expert at writing bedtime stories for %s from a planned outline.\n\n", audience))
	b.WriteString("# Original Request\n\n")
	b.WriteString(orNA(request) + "\n\n")

	b.WriteString("# Outline\n\n")
	p := outline.Protagonist
	b.WriteString(fmt.Sprintf("**Protagonist:** %s (age %s, %s, %s)\n\n",
		orNA(p.Name), orNA(p.Age), orNA(p.Personality), orNA(p.Type)))

	b.WriteString("**Helpers:**\n")
	if len(outline.Helpers) == 0 {
		b.WriteString("- (none)\n\n")
	} else {
		for _, h := range outline.Helpers {
			b.WriteString(fmt.Sprintf("- %s, %s: %s\n", orNA(h.Name), orNA(h.Type), orNA(h.Role)))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("**Setting:** %s\n\n", orNA(outline.Setting)))
	b.WriteString(fmt.Sprintf("**Conflict:** %s\n\n", orNA(outline.Conflict)))

	b.WriteString("**Key Events:**\n")
	if len(outline.KeyEvents) == 0 {
		b.WriteString("- (none)\n\n")
	} else {
		for i, e := range outline.KeyEvents {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, orNA(e)))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("**Resolution:** %s\n\n", orNA(outline.Resolution)))
	b.WriteString(fmt.Sprintf("**Theme:** %s\n\n", orNA(outline.Theme)))

	writeStoryRequirements(&b)
	b.WriteString(storyContract)

	return b.String()
}

// SinglePass asks the model for the finished story directly from the request.
func SinglePass(request string, avoid []string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Create a bedtime story for %s.\n\n", audience))
	b.WriteString("# Story Request\n\n")
	b.WriteString(orNA(request) + "\n\n")
	writeAvoid(&b, avoid)

	writeStoryRequirements(&b)
	b.WriteString(storyContract)

	return b.String()
}

func writeStoryRequirements(b *strings.Builder) {
	b.WriteString("# Requirements\n\n")
	b.WriteString("- Length: 800-1000 words (a 7-8 minute read aloud)\n")
	b.WriteString("- A child protagonist who solves problems through their own choices\n")
	b.WriteString("- Gentle themes: friendship, kindness, exploration, overcoming small fears\n")
	b.WriteString("- Natural dialogue between characters\n")
	b.WriteString("- Specific, vivid details instead of vague descriptions\n")
	b.WriteString("- Energy that winds down toward a calm, cozy ending with sleep imagery\n")
	b.WriteString("- Separate paragraphs with blank lines\n\n")
}

// Refine asks the model to apply targeted edits without rewriting the story.
func Refine(story engine.Story, instructions string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are a children's story editor refining a bedtime story for %s.\n\n", audience))
	b.WriteString("# Original Story\n\n")
	writeStory(&b, story)

	b.WriteString("# Editor Instructions\n\n")
	b.WriteString(orNA(instructions) + "\n\n")

	b.WriteString("# Task\n\n")
	b.WriteString("Apply the instructions while keeping the story recognizably the same. ")
	b.WriteString("Keep the title and moral unless an instruction explicitly targets them. ")
	b.WriteString("Do not shorten the story; keep it at least as long as the original. ")
	b.WriteString("Separate paragraphs with blank lines.\n\n")

	b.WriteString("Respond ONLY with valid JSON:\n")
	b.WriteString("{\n")
	b.WriteString(fmt.Sprintf("    \"title\": %q,\n", orNA(story.Title)))
	b.WriteString("    \"story\": \"the full refined story\",\n")
	b.WriteString(fmt.Sprintf("    \"moral\": %q\n", orNA(story.Moral)))
	b.WriteString("}\n")

	return b.String()
}

// Safety asks the model to screen a story for unsafe bedtime content.
func Safety(story engine.Story) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Check whether this bedtime story is safe for %s.\n\n", audience))
	writeStory(&b, story)

	b.WriteString("# Red Flags\n\n")
	b.WriteString("- Violence, death, injury or frightening content\n")
	b.WriteString("- Separation from parents or unresolved danger\n")
	b.WriteString("- Inappropriate themes or language\n")
	b.WriteString("- Anything that could cause nightmares\n\n")

	b.WriteString("Respond ONLY with valid JSON:\n")
	b.WriteString("{\n")
	b.WriteString("    \"passed\": true or false,\n")
	b.WriteString("    \"issues\": \"specific problems if failed, empty if passed\"\n")
	b.WriteString("}\n")

	return b.String()
}

// Rubric asks the model to score a story on the four quality dimensions.
func Rubric(story engine.Story, length engine.LengthCheck) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Evaluate this bedtime story for %s. Be critical but fair.\n\n", audience))
	writeStory(&b, story)
	b.WriteString(fmt.Sprintf("**Length:** %d words (target %s)\n\n", length.WordCount, orNA(length.TargetRange)))

	b.WriteString("# Rubric (score each 1-10, decimals allowed)\n\n")
	b.WriteString("CHARACTER (\"character_connection\"): Does the protagonist have personality? Do they solve problems themselves? Is dialogue natural?\n\n")
	b.WriteString("BEDTIME APPROPRIATE (\"bedtime_appropriate\"): Does energy decrease toward the end? Is the ending calm with sleep imagery? Are conflicts resolved peacefully?\n\n")
	b.WriteString("STORYTELLING CRAFT (\"storytelling_craft\"): Is it engaging? Are details specific rather than vague?\n\n")
	b.WriteString("AGE-FIT (\"age_appropriate\"): Is vocabulary right for 5-10 year olds? Does the lesson emerge naturally rather than preachily?\n\n")

	b.WriteString("# Scoring Boundaries\n\n")
	b.WriteString("8-10: great, perfect for bedtime\n")
	b.WriteString("6-8: solid, works with some rough edges\n")
	b.WriteString("4-6: basic, has the elements but needs development\n")
	b.WriteString("1-4: significant problems\n\n")

	b.WriteString("Respond ONLY with valid JSON:\n")
	b.WriteString("{\n")
	for _, d := range engine.Dimensions {
		b.WriteString(fmt.Sprintf("    \"%s\": score,\n", d))
	}
	b.WriteString("    \"feedback\": {\n")
	for i, d := range engine.Dimensions {
		sep := ","
		if i == len(engine.Dimensions)-1 {
			sep = ""
		}
		b.WriteString(fmt.Sprintf("        \"%s\": \"What to fix: specific actionable improvement\"%s\n", d, sep))
	}
	b.WriteString("    }\n")
	b.WriteString("}\n")

	return b.String()
}

// RefinementTarget is the score below which a dimension is called out for rewriting.
const RefinementTarget = 7.0

// RefinementInstructions asks the model for concrete rewrite steps targeting
// the low-scoring dimensions of an evaluation.
func RefinementInstructions(eval engine.Evaluation) string {
	var b strings.Builder

	b.WriteString("Based on a detailed rubric evaluation of a bedtime story, provide specific, actionable refinement instructions.\n\n")

	b.WriteString(fmt.Sprintf("# Scores Needing Improvement (target: %.1f+)\n\n", RefinementTarget))
	low := 0
	for _, d := range engine.Dimensions {
		score, ok := eval.DimensionScores[d]
		if !ok || score >= RefinementTarget {
			continue
		}
		low++
		b.WriteString(fmt.Sprintf("- %s: %.1f/10 - %s\n", strings.ToUpper(string(d)), score, orNA(eval.Feedback[d])))
	}
	if low == 0 {
		b.WriteString(fmt.Sprintf("- All dimensions at or above %.1f\n", RefinementTarget))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("**Length Status:** %s\n\n", orNA(eval.LengthCheck.Feedback)))

	b.WriteString("# Guidance\n\n")
	b.WriteString("- Character: the child drives every major decision and shows feelings kids recognize\n")
	b.WriteString("- Bedtime: engaging start, gradual wind-down, cozy sleep imagery at the end\n")
	b.WriteString("- Craft: a strong opening hook and specific, vivid details\n")
	b.WriteString("- Age-fit: vocabulary and complexity suited to 5-10 year olds\n\n")

	b.WriteString("Provide 2-4 specific instructions focusing on the lowest-scoring dimensions.\n\n")
	b.WriteString("Respond ONLY with valid JSON:\n")
	b.WriteString("{\"instructions\": [\"first instruction\", \"second instruction\"]}\n")

	return b.String()
}

// Questions asks the model for follow-up questions a child might ask.
func Questions(story engine.Story) string {
	var b strings.Builder

	b.WriteString("You are a curious 5-10 year old child who just heard this bedtime story.\n\n")
	writeStory(&b, story)

	b.WriteString("# Task\n\n")
	b.WriteString("Write the 3 questions you most want to ask about the story: what happened, why characters acted as they did, or what might happen next.\n\n")

	b.WriteString("Respond ONLY with valid JSON:\n")
	b.WriteString("{\"questions\": [\"first question\", \"second question\", \"third question\"]}\n")

	return b.String()
}

// Answer asks the model to answer a child's question in a parent's voice.
func Answer(question string, story engine.Story) string {
	var b strings.Builder

	b.WriteString("You are a parent answering your child's question after reading them a bedtime story.\n\n")
	writeStory(&b, story)

	b.WriteString("# Question\n\n")
	b.WriteString(orNA(question) + "\n\n")

	b.WriteString("# Task\n\n")
	b.WriteString("Answer warmly in 2-4 sentences suited to a 5-10 year old. ")
	b.WriteString("Use the story and keep its magic alive; you may invent gentle details that fit it. ")
	b.WriteString("If the question has nothing to do with the story, kindly say you can only answer questions about this story.\n\n")
	b.WriteString("Respond with ONLY the answer text (no JSON, no quotes).\n")

	return b.String()
}
