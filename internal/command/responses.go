package command

import (
	"fmt"
	"strings"

	"github.com/eleven-am/sightline/internal/perception"
)

const (
	TextStarting      = "Starting detection."
	TextStopping      = "Stopping all detection."
	TextGoodbye       = "Goodbye."
	TextNoFaceFrame   = "No camera frame available for face recognition."
	TextNoReadFrame   = "No camera frame available to read from."
	TextNoText        = "I couldn't detect any readable text."
	TextReadingRest   = "Reading the rest now."
	TextNobody        = "I don't see anyone in front of you."
	TextFacesFailed   = "Sorry, I couldn't recognize faces right now."
	TextReadFailed    = "Sorry, I couldn't read the text right now."
	TextAssistantDown = "Sorry, I couldn't reach the assistant right now."
	TextUnavailable   = "That feature is not available right now."

	longTextLimit   = 300
	longTextPreview = 250
)

func describeLabels(labels []string) string {
	if len(labels) == 0 {
		return "In front of you: nothing detected."
	}
	return fmt.Sprintf("In front of you: %s.", strings.Join(labels, ", "))
}

// describeFaces turns face-match results into one sentence.
func describeFaces(ids []perception.Identity) string {
	var names []string
	unknown := 0
	for _, id := range ids {
		if id.Known && id.Name != "" {
			names = append(names, id.Name)
		} else {
			unknown++
		}
	}

	switch {
	case len(names) > 0 && unknown == 1:
		return fmt.Sprintf("I see %s and 1 other person.", strings.Join(names, ", "))
	case len(names) > 0 && unknown > 1:
		return fmt.Sprintf("I see %s and %d other people.", strings.Join(names, ", "), unknown)
	case len(names) > 0:
		return fmt.Sprintf("I see %s.", strings.Join(names, ", "))
	case unknown > 1:
		return fmt.Sprintf("There are %d unknown people in front of you.", unknown)
	case unknown == 1:
		return "There is an unknown person in front of you."
	default:
		return TextNobody
	}
}

// readingParts splits OCR output into the announcements to make. Long text
// gets a preview of its first line before the full reading.
func readingParts(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{TextNoText}
	}
	if len([]rune(text)) <= longTextLimit {
		return []string{text}
	}

	first, _, _ := strings.Cut(text, "\n")
	if r := []rune(first); len(r) > longTextPreview {
		first = string(r[:longTextPreview])
	}
	return []string{
		fmt.Sprintf("I detected a long text. Starting: %s", strings.TrimSpace(first)),
		TextReadingRest,
		text,
	}
}

// conversationPrompt prefixes the user's words with what the device currently
// perceives.
func conversationPrompt(transcript string, snap perception.Snapshot) string {
	var b strings.Builder
	b.WriteString("You are the voice of a pair of assistive smart glasses worn by a visually impaired person. ")
	b.WriteString("Answer briefly in plain spoken English.\n")
	if len(snap.Labels) > 0 {
		fmt.Fprintf(&b, "The camera currently sees: %s.\n", strings.Join(snap.Labels, ", "))
	} else {
		b.WriteString("The camera currently sees nothing recognizable.\n")
	}
	if snap.ObstacleConfirmed {
		b.WriteString("There is an obstacle directly ahead.\n")
	} else {
		b.WriteString("No obstacle is directly ahead.\n")
	}
	fmt.Fprintf(&b, "User: %s", transcript)
	return b.String()
}
