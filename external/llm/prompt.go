package llm

import (
	"fmt"

	"github.com/foxseedlab/tsuyaku/internal/translation"
)

func translationPrompt(req translation.Request) string {
	if req.Mode == translation.ModeLiteral {
		return fmt.Sprintf("You are a real-time translator. Translate the following text from %s to %s. "+
			"Translate EXACTLY what is provided, word for word. "+
			"Do not add any additional content, context, or embellishment. "+
			"Only respond with the direct translation, nothing else.",
			req.SourceLanguage, req.TargetLanguage)
	}
	return fmt.Sprintf("You are a real-time translator. Translate the following text from %s to %s. "+
		"Maintain the original meaning, tone, and structure. "+
		"Preserve line breaks and paragraph structure. "+
		"Only respond with the translated text, nothing else.",
		req.SourceLanguage, req.TargetLanguage)
}

func summaryPrompt(language string) string {
	return fmt.Sprintf(`You are an assistant that helps format transcribed text and generate a title and summary.
The text is in %s.
Format the text into clear paragraphs.
Generate a concise title (max 60 characters) that reflects the content.
Create a brief summary (2-3 sentences) of the key points.
Only use information explicitly stated in the text, do not add any new information or assumptions.
Respond in JSON format with the following structure:
{ "title": "The title", "formattedText": "The formatted text", "summary": "The summary" }`, language)
}
