// Package pipeline implements the content generation use-cases of the
// tutoring platform on top of the orchestrator: quiz generation, grading,
// curriculum scheduling, concept extraction, and live tutoring chat.
//
// Each pipeline is a thin layer that builds the prompt pair and response
// schema for its domain, calls the orchestrator with the right output shape,
// and then enforces domain rules that generic schema validation can't express:
// a quiz must contain exactly the requested number of questions, a grade's
// score must fall in [0,1], every curriculum unit needs at least one subunit.
// Domain rule failures are classified as schema validation errors and are
// never retried automatically; the caller decides whether to adjust the
// prompt and try again.
//
// Pipelines are pure apart from the generation call itself: the same input
// yields the same prompt, and all validation happens on the returned value.
package pipeline
