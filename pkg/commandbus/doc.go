// Package commandbus relays agent commands to long-running automation agents.
//
// Every command is delivered two ways:
// - a per-agent Mailbox keeps the latest undelivered command for polling clients;
// - a Multicast stream pushes every command to live subscribers.
//
// The mailbox holds at most one entry per agent; a newer command replaces an
// older one. Live subscribers each get a bounded backlog and are told how many
// messages they missed when they fall behind.
package commandbus
