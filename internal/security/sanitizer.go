// Package security provides prompt-injection detection and sanitization
// for text that flows into LLM prompts.
package security

import (
	"fmt"
	"strings"
)

// injectionPatterns are lowercase substrings that indicate a prompt
// injection attempt.
var injectionPatterns = []string{
	// Direct instruction overrides
	"ignore previous",
	"ignore above",
	"ignore all",
	"disregard previous",
	"disregard above",
	"forget previous",
	"forget above",
	"forget your instructions",
	"new instructions",
	"override instructions",
	"system prompt",
	"system:",
	"### system",
	"### instruction",
	"[system]",
	"[inst]",
	"<|system|>",
	"<|im_start|>",
	"<s>",
	"</s>",
	"<<sys>>",
	"<</sys>>",

	// Role manipulation
	"you are now",
	"act as if",
	"pretend you are",
	"roleplay as",
	"from now on",
	"starting now",
	"new persona",
	"change your",
	"switch to",

	// Jailbreak attempts
	"dan mode",
	"developer mode",
	"jailbreak",
	"bypass",
	"unlock",
	"no restrictions",
	"without limits",
	"ignore safety",
	"ignore ethics",

	// Output manipulation
	"respond with",
	"always respond",
	"never respond",
	"only respond",
	"must respond",
	"output only",
	"print only",

	// Russian variants
	"игнорируй предыдущ",
	"забудь предыдущ",
	"новые инструкции",
	"системный промпт",
	"ты теперь",
	"притворись",
	"с этого момента",
}

// dangerousSequences can be used to manipulate prompt structure.
var dangerousSequences = []string{
	"\n\n\n",
	"```",
	"---",
	"===",
	"###",
}

// roleMarkerReplacements neutralizes role markers so user text cannot
// impersonate another speaker.
var roleMarkerReplacements = strings.NewReplacer(
	"System:", "[System]",
	"system:", "[system]",
	"Bot:", "[Bot]",
	"User:", "[User]",
	"Assistant:", "[Assistant]",
	"Human:", "[Human]",
)

// SanitizationResult describes what sanitization found and produced.
type SanitizationResult struct {
	Sanitized        string
	WasModified      bool
	DetectedPatterns []string
	RiskScore        int // 0-100
}

// SanitizeUserInput cleans user text before it is included in a prompt.
// It detects injection patterns, escapes role markers, collapses
// excessive newlines and truncates to maxLength runes.
func SanitizeUserInput(input string, maxLength int) SanitizationResult {
	var detected []string
	riskScore := 0

	inputLower := strings.ToLower(input)
	for _, pattern := range injectionPatterns {
		if strings.Contains(inputLower, pattern) {
			detected = append(detected, pattern)
			riskScore += 20
		}
	}

	for _, seq := range dangerousSequences {
		if strings.Contains(input, seq) {
			riskScore += 5
		}
	}

	if riskScore > 100 {
		riskScore = 100
	}

	sanitized := roleMarkerReplacements.Replace(input)

	for strings.Contains(sanitized, "\n\n\n") {
		sanitized = strings.ReplaceAll(sanitized, "\n\n\n", "\n\n")
	}

	truncated := false
	if runes := []rune(sanitized); len(runes) > maxLength {
		truncated = true
		sanitized = string(runes[:maxLength])
		// Cut at a word boundary when one is near the limit.
		if lastSpace := strings.LastIndex(sanitized, " "); lastSpace > maxLength-50 {
			sanitized = sanitized[:lastSpace]
		}
		sanitized += "..."
	}

	return SanitizationResult{
		Sanitized:        sanitized,
		WasModified:      sanitized != input || truncated,
		DetectedPatterns: detected,
		RiskScore:        riskScore,
	}
}

// SanitizeExternalContent cleans text from external sources (web pages,
// recalled memories). More aggressive than user input sanitization:
// short lines ending in ':' are indented so they cannot read as role
// markers.
func SanitizeExternalContent(content string, maxLength int) string {
	result := SanitizeUserInput(content, maxLength)

	lines := strings.Split(result.Sanitized, "\n")
	for i, line := range lines {
		if strings.HasSuffix(strings.TrimSpace(line), ":") && len(line) < 30 {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}

// dangerousPersonaPatterns flag persona prompts that try to override
// system behavior.
var dangerousPersonaPatterns = []string{
	"ignore user",
	"always agree",
	"never refuse",
	"bypass safety",
	"no ethical",
	"harmful",
	"illegal",
}

// ValidatePersonaPrompt checks a persona system prompt for unsafe
// content. Returns whether it is safe, the sanitized prompt, and any
// warnings.
func ValidatePersonaPrompt(prompt string) (bool, string, []string) {
	var warnings []string
	result := SanitizeUserInput(prompt, 4000)

	if result.RiskScore > 50 {
		warnings = append(warnings, fmt.Sprintf(
			"high risk score (%d): detected patterns %v",
			result.RiskScore, result.DetectedPatterns))
	}

	promptLower := strings.ToLower(prompt)
	for _, pattern := range dangerousPersonaPatterns {
		if strings.Contains(promptLower, pattern) {
			warnings = append(warnings, fmt.Sprintf("dangerous pattern in persona: %q", pattern))
		}
	}

	isSafe := len(warnings) == 0 && result.RiskScore < 30
	return isSafe, result.Sanitized, warnings
}

// ShouldFlagMessage reports whether a message warrants review.
func ShouldFlagMessage(input string) bool {
	result := SanitizeUserInput(input, 10000)
	return result.RiskScore >= 40 || len(result.DetectedPatterns) > 0
}
