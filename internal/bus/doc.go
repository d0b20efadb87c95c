// Package bus carries intents from any number of producers to the single
// dispatch loop that owns application state. Submissions are delivered in the
// order they were made, across all producers, and draining never blocks so the
// loop can apply a whole batch per tick without waiting on deferred work.
package bus
