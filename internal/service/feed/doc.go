// Package feed imports the property-management system's reservation export
// (Opera XML) into the canonical store.
//
// Each reservation record is resolved to a guest and upserted by its
// external reservation id in its own transaction. Reimporting a payload
// updates reservations in place, which makes at-least-once delivery from
// the mailbox safe to replay.
package feed
