// Package bridge defines the message contract between the capture engine
// and its consumer process, plus a WebSocket reference transport. Outbound
// chunk and aggregate messages use a binary envelope with a JSON metadata
// block; inbound control is plain JSON commands. Delivery is one-way,
// asynchronous and at-most-once.
package bridge
