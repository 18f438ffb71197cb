// Package textutil provides small text helpers shared across packages:
// filesystem-safe tokens for job identities, ASCII folding ahead of ffmpeg
// drawtext sanitization, and English title casing for captions.
package textutil
