/*
Package paideia provides the AI orchestration layer for a tutoring platform:
a uniform gateway over multiple LLM backends with ordered fallback, structured
output extraction, streaming conversation sessions, and usage metering.

The package implements the gateway through several key abstractions:

  - Providers: Interchangeable backends (OpenAI, Anthropic) behind one interface
  - Orchestrator: Routing, fallback policy, extraction, and cost accounting
  - Sessions: At-most-one live stream per conversation with exactly-once endings
  - Pipelines: Typed content generation (quizzes, grading, schedules, concepts)
  - Brokers: Relay of stream events to in-process or NATS transports

# Basic Usage

A typical setup registers the configured backends and routes requests through
the orchestrator:

	orc, err := paideia.New(
		paideia.WithProvider(openai.New("balanced", "gpt-4o-mini",
			option.WithAPIKey(os.Getenv("OPENAI_API_KEY"))), balancedProfile),
		paideia.WithProvider(anthropic.New("premium", "claude-sonnet-4",
			os.Getenv("ANTHROPIC_API_KEY")), premiumProfile),
	)
	if err != nil {
		// Handle error
	}

	result, err := orc.Generate(ctx, provider.Request{
		SystemPrompt: "You are a strict grader.",
		UserPrompt:   prompt,
		Shape:        provider.ShapeJSONObject,
	}, paideia.WithFallback("premium"))

# Architecture

The package is built around several core concepts:

1. Orchestrator (orchestrator.go)
  - Resolves each call to a named backend
  - Retries once on a fallback when the failure is retryable
  - Extracts and validates structured output before returning
  - Prices every call from the backend's profile

2. Error taxonomy (pkg/aierr)
  - Every failure carries a stable classification code
  - Only rate limiting and backend unavailability are retryable
  - Auth and output-shape failures never trigger fallback

3. Sessions (session)
  - One live stream per conversation, strictly serialized
  - Tokens delivered in arrival order, one terminal callback per stream

4. Pipelines (pipeline)
  - Prompt construction and domain validation for each content type
  - Reject structurally valid JSON that breaks domain rules

Provider clients live under provider/openai and provider/anthropic; shared
request, result, and stream event types live in provider.
*/
package paideia
