// Package persona defines the voice assistant personalities an agent can
// take on and how a room selects one.
package persona

import (
	"fmt"
	"strings"
)

// Kind identifies a personality.
type Kind int

const (
	Maya Kind = iota
	Miles
)

// Persona is the fixed presentation of a personality.
type Persona struct {
	Kind         Kind
	ID           string
	Name         string
	Voice        string
	Instructions string
}

const mayaInstructions = `You are Maya, a warm and empathetic voice assistant. You listen carefully and respond thoughtfully.
Your responses should be:
- Friendly and caring
- Brief (1-2 sentences usually)
- Natural conversational style
- Ask follow-up questions to show interest
Always be supportive and encouraging in your tone.`

const milesInstructions = `You are Miles, a laid-back and witty voice assistant. You tell it like it is with a touch of humor.
Your responses should be:
- Casual and relaxed
- Brief (1-2 sentences usually)
- Occasionally use light humor
- Be direct and honest
Keep it real and don't overthink things.`

var personas = map[Kind]Persona{
	Maya: {
		Kind:         Maya,
		ID:           "maya",
		Name:         "Maya",
		Voice:        "nova",
		Instructions: mayaInstructions,
	},
	Miles: {
		Kind:         Miles,
		ID:           "miles",
		Name:         "Miles",
		Voice:        "onyx",
		Instructions: milesInstructions,
	},
}

func (k Kind) String() string {
	switch k {
	case Maya:
		return "maya"
	case Miles:
		return "miles"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Get returns the persona for k. Unknown kinds fall back to Maya.
func Get(k Kind) Persona {
	if p, ok := personas[k]; ok {
		return p
	}
	return personas[Maya]
}

// Select picks the persona for a room: any room whose name contains "miles"
// (case-insensitive) gets Miles, every other room gets Maya.
func Select(roomName string) Persona {
	if strings.Contains(strings.ToLower(roomName), "miles") {
		return personas[Miles]
	}
	return personas[Maya]
}

// Parse resolves a persona id such as "maya" or "Miles".
func Parse(id string) (Persona, bool) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "maya":
		return personas[Maya], true
	case "miles":
		return personas[Miles], true
	default:
		return Persona{}, false
	}
}

// Greeting is the first line the persona speaks when joining a room.
func (p Persona) Greeting() string {
	return fmt.Sprintf("Hi! I'm %s. How can I help you today?", p.Name)
}

// WithVoice returns a copy of p speaking with voice. An empty voice keeps the
// default.
func (p Persona) WithVoice(voice string) Persona {
	if voice != "" {
		p.Voice = voice
	}
	return p
}
