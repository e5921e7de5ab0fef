package pipeline

import (
	"github.com/paideia-ai/paideia/api"
	"github.com/paideia-ai/paideia/session"
)

// TutorSystemPrompt is the instruction set for the live tutoring chat. The
// chat pipeline is the one free-text pipeline: output streams token by token
// through the session registry instead of being extracted and validated.
const TutorSystemPrompt = `You are a patient, encouraging tutor.
Explain concepts step by step, check the student's understanding with short questions, and never just hand over the final answer to an exercise.`

// NewChat wires a session registry for live tutoring conversations: streaming
// goes through the given streamer, history and finished exchanges go through
// the store.
func NewChat(streamer session.Streamer, store api.Store) (*session.Registry, error) {
	return session.NewRegistry(streamer,
		session.WithStore(store),
		session.WithSystemPrompt(TutorSystemPrompt),
	)
}
