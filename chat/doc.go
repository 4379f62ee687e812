// Package chat owns the live Twitch IRC session and the normalization of raw
// chat events into canonical records.
//
// Connection is a small state machine (disconnected -> connecting ->
// connected) driven by a single run loop: it acquires an access token from
// its TokenProvider, opens the IRC session for the configured channel, and
// reconnects forever with capped exponential backoff when the session fails.
// Because one loop owns the lifecycle there is never more than one pending
// reconnect at a time.
//
// Inbound events flow out as typed Events on a bounded channel with the
// orchestrator as the single consumer. Messages authored by the configured
// bot username are suppressed before normalization; events the normalizer
// rejects are logged and counted but never propagate.
package chat
