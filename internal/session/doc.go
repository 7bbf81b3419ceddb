// Package session implements the recording session state machine. A recorder
// moves between idle, recording and stopped, feeding captured blocks through
// the chunker and publishing chunks and the final aggregate over the bridge.
package session
