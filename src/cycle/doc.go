// Package cycle implements the timed state machine of the consensus cycle.
package cycle
