// Package votationengine runs timed voting rounds on meeting propositions.
//
// It opens, stops and re-runs votations, records at most one live ballot per
// admission ticket and votation, accepts paper ballots, and tallies results.
// Every command commits its state change together with the outbox rows of the
// events it announces; workers relay those rows to the broadcast bus and
// close rounds when the catalog ends a meeting or withdraws a proposition.
package votationengine
