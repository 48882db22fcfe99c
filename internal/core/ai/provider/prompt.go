package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Style 決定 palette 列舉格式與指示語氣
type Style int

const (
	// StyleDefault 通用格式：brand name (color) [Ref: x]
	StyleDefault Style = iota
	// StyleCloud 在行尾加上 [ID: ...]
	StyleCloud
	// StyleLocal 在行首加上 ID: "..." |，指示更嚴格
	StyleLocal
)

// UnknownColor palette 項目沒有顏色時的佔位字串
const UnknownColor = "unknown color"

// ConnectionTestPrompt 健康檢查使用的 prompt
const ConnectionTestPrompt = `Respond with "OK" if you receive this message.`

const defaultConfidenceGuide = `Confidence guidelines:
- 0.9-1.0: Exact match possible with available paints
- 0.7-0.89: Very close approximation
- 0.5-0.69: Good approximation
- <0.5: Rough approximation only`

const cloudConfidenceGuide = `Confidence guide:
- 0.90-1.00: Exact match possible
- 0.75-0.89: Very close approximation
- 0.60-0.74: Good match
- 0.40-0.59: Approximate only
- <0.40: Poor match with available paints`

// FormatPaletteEntry 依 style 輸出單行 palette 項目
func FormatPaletteEntry(style Style, e PaletteEntry) string {
	color := e.Color
	if color == "" {
		color = UnknownColor
	}
	ref := ""
	if e.Reference != "" {
		ref = fmt.Sprintf(" [Ref: %s]", e.Reference)
	}

	switch style {
	case StyleCloud:
		return fmt.Sprintf("- %s %s (%s) [ID: %s]%s", e.Brand, e.Name, color, e.ID, ref)
	case StyleLocal:
		return fmt.Sprintf("- ID: %q | %s %s (%s)%s", e.ID, e.Brand, e.Name, color, ref)
	default:
		return fmt.Sprintf("- %s %s (%s)%s", e.Brand, e.Name, color, ref)
	}
}

// BuildPrompt 產生 prompt；相同輸入輸出逐位元組相同
func BuildPrompt(style Style, targetBrand, targetName string, palette []PaletteEntry) string {
	lines := make([]string, 0, len(palette))
	for _, e := range palette {
		lines = append(lines, FormatPaletteEntry(style, e))
	}
	paletteStr := strings.Join(lines, "\n")
	target := fmt.Sprintf("%s %s", targetBrand, targetName)

	var b strings.Builder
	switch style {
	case StyleCloud:
		fmt.Fprintf(&b, "You are an expert in model paint mixing. Create a recipe to match %q.\n\n", target)
		b.WriteString("AVAILABLE PAINTS (use ONLY these):\n")
		b.WriteString(paletteStr)
		b.WriteString(`

REQUIREMENTS:
1. Use 2-5 paints from the available list
2. Specify exact drop counts for each
3. Total drops should be reasonable (10-30 total)
4. Consider color theory
5. Prefer paints with similar properties when possible

RESPONSE FORMAT (JSON only):
`)
		b.WriteString(responseSchema(targetBrand, targetName, "Brief mixing rationale",
			`{"paintId": "uuid-from-list", "drops": number},
    ...`))
		b.WriteString("\n\n")
		b.WriteString(cloudConfidenceGuide)

	case StyleLocal:
		b.WriteString("You are a paint mixing expert for model painting and miniatures.\n\n")
		fmt.Fprintf(&b, "Task: Create a recipe to mix a paint that matches %q.\n\n", target)
		b.WriteString(`CRITICAL INSTRUCTIONS:
1. You MUST use ONLY the paints listed below in the EXACT format provided
2. For each component, you MUST use the paint's ID exactly as shown (including the full UUID string)
3. Example: if you see "ID: abc-123 | Vallejo German Grey (#4A4A4A)", use "abc-123" as the paintId

Available paints in user's palette:
`)
		b.WriteString(paletteStr)
		b.WriteString(`

REQUIREMENTS:
1. Use ONLY the paints listed above - do NOT invent new ones
2. Provide exact number of drops for each component (1 drop minimum, typically 1-5 drops)
3. Recipe must be reproducible with exact IDs
4. Consider color theory and paint properties
5. Use 2-4 paints maximum for a good mix

RESPONSE FORMAT (JSON only, no markdown):
`)
		b.WriteString(responseSchema(targetBrand, targetName, "Brief explanation of why these paints work together",
			`{"paintId": "exact-id-from-list-above", "drops": number},
    {"paintId": "another-exact-id", "drops": number}`))
		b.WriteString("\n\n")
		b.WriteString(defaultConfidenceGuide)
		b.WriteString("\n\nImportant: Return ONLY the JSON, no markdown formatting, no explanations outside the JSON.")

	default:
		b.WriteString("You are a paint mixing expert for model painting and miniatures.\n\n")
		fmt.Fprintf(&b, "Task: Create a recipe to mix a paint that matches %q.\n\n", target)
		b.WriteString("Available paints in user's palette:\n")
		b.WriteString(paletteStr)
		b.WriteString(`

Requirements:
1. Use ONLY the paints listed above
2. Provide exact number of drops for each component
3. Recipe must be reproducible
4. Consider color theory and paint properties

Respond in JSON format with this structure:
`)
		b.WriteString(responseSchema(targetBrand, targetName, "Brief explanation of the mix",
			`{"paintId": "paint-uuid", "drops": number},
    ...`))
		b.WriteString("\n\n")
		b.WriteString(defaultConfidenceGuide)
	}

	return b.String()
}

func responseSchema(targetBrand, targetName, explanation, components string) string {
	return fmt.Sprintf(`{
  "targetBrand": %s,
  "targetName": %s,
  "confidence": 0.0-1.0,
  "explanation": %q,
  "components": [
    %s
  ]
}`, jsonString(targetBrand), jsonString(targetName), explanation, components)
}

func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
