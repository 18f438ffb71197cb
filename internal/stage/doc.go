// Package stage executes single generative steps and validates their output.
//
// A Runner turns a Spec into one of three results: a structured manifest
// decoded from text output, a binary asset (image or speech), or a downloaded
// video produced by a polled long-running operation. Structured output is
// passed through Extract, which strips code fences, parses JSON, and checks the
// manifest shape before anything downstream sees it. Every failure is tagged
// with a services marker; nothing here retries.
package stage
