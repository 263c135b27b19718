package pipeline

import "fmt"

// StructuringPrompt asks the model to turn recognized text into a markdown table.
func StructuringPrompt(text string) string {
	return fmt.Sprintf("Convert the lab report into a markdown table. You should format this in the form of 'measurement, measuredvalue, low, high'. Here is the %s", text)
}

// TranslationPrompt asks the model to translate text into lang.
func TranslationPrompt(text string, lang Language) string {
	return fmt.Sprintf("translate %s this to %s", text, lang)
}
