// Package engine contains the simulation loop and the restoration logic.
//
// The Engine owns occupants and chambers. Clock ticks and external
// commands are serialized, so every chamber is stepped by exactly one
// goroutine at a time, once per tick.
package engine
