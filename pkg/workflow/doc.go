// Package workflow manages declarative state machines and the role type
// lists that gate access to their states.
//
// A machine owns states; transitions connect two states of the same machine.
// Every state carries two role type lists, one for readers and one for
// writers; the lists feed the rbac package's state-aware checks. The gate
// does not execute transitions, it only answers who may act in a state.
package workflow
