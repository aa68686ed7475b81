// Package tf tracks the time-varying rigid transforms between named
// coordinate frames and answers "where is frame A relative to frame B at
// time T" across chains of independently published edges.
//
// The Tree maintains a per-edge time-ordered Buffer of records with bounded
// retention; LookupTransform walks both frames to their lowest common
// ancestor and composes interpolated per-edge transforms into the answer.
// The Listener ingests transform batches from a tfbus transport, and the
// Broadcaster publishes application transforms back to it. All state lives
// in memory and is rebuilt on restart from whatever the transport redelivers.
package tf
