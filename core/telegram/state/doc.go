// Package state manages per-chat dialogue sessions for multi-turn input
// flows. A session accumulates validated fields one state at a time and
// keeps a queue of transient message ids that the dialogue engine deletes
// on the next state transition.
package state
