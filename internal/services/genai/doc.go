// Package genai talks to the generative-media service over its REST API.
//
// A single Client covers the four request modes the pipelines need: structured
// text, still images, speech (single or multi-speaker), and long-running video
// operations that are submitted, polled at a fixed interval, and downloaded.
// Every call is a single attempt; callers decide how failures map onto the job
// error taxonomy. Inline binary payloads are returned decoded, and PCM speech
// output carries enough format information to drive a transcode.
package genai
