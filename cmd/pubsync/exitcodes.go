package main

// Exit codes returned by pubsync commands
const (
	ExitSuccess      = 0 // Success, including runs where some PDFs could not be fetched
	ExitError        = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError  = 2 // Configuration error (bad config file, invalid values)
	ExitDataError    = 3 // Data error (unreadable store, failed integrity check)
	ExitEmptyListing = 4 // The listing produced no publications
	ExitChallenge    = 5 // Bot-verification challenge not solved
	ExitBrowserError = 6 // Browser could not be started or crashed
	ExitInterrupted  = 130
)
