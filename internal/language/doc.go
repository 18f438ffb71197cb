// Package language maps the language field of a lesson payload to the English
// language name used in generation prompts.
package language
