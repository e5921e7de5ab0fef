// Package provider implements an abstraction layer for interacting with AI model providers
// (like OpenAI, Anthropic, etc.) in a consistent way. It defines interfaces and types
// for blocking and streaming completions while handling provider-specific details.
//
// Design decisions:
//   - Provider abstraction: Single interface that different AI backends implement
//   - Streaming first: streaming completions deliver tokens as the backend emits them
//   - Value objects: Request and Result carry no conversation identity and are
//     freely reusable by any caller
//   - Error handling: backend-specific error shapes are mapped into the shared
//     aierr taxonomy before they leave a client; clients never retry
//   - Profiles: each backend carries a read-only Profile with its model id,
//     credential reference, and per-million-token pricing
//
// The streaming contract uses four event types:
//  1. Delim: delimiter events marking stream boundaries
//  2. Chunk: incremental token fragments
//  3. Completion: the terminal success event with assembled text and usage
//  4. Error: the terminal failure event
//
// A stream emits zero or more Chunks followed by exactly one Completion or
// Error, then closes. Example usage:
//
//	client := openai.New("balanced", "gpt-4o-mini")
//	events, err := client.Stream(ctx, provider.Request{
//	    SystemPrompt: "You are a patient tutor",
//	    UserPrompt:   "Explain photosynthesis",
//	})
//	if err != nil {
//	    return err
//	}
//
//	for event := range events {
//	    switch e := event.(type) {
//	    case provider.Chunk:
//	        // Handle incremental token
//	    case provider.Completion:
//	        // Handle assembled text and usage
//	    case provider.Error:
//	        // Handle classified failure
//	    }
//	}
//
// New backends are added by implementing the Provider interface while keeping
// the error mapping and event ordering guarantees intact.
package provider
