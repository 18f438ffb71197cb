// Command lessonmedia runs the lesson media daemon and offers operator
// commands for submitting jobs, inspecting the job store, and checking
// readiness of the external services a run depends on.
package main
