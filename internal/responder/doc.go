// Package responder produces assistant replies for transcribed commands.
//
// Responses come from an ordered keyword table (weather, time, date,
// greeting, help) with an echo fallback for anything unrecognized. The
// clock is injectable so time- and date-sensitive replies stay testable.
package responder
