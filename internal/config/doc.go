// Package config loads and validates the YAML service configuration.
//
// Every section carries its own Validate method and sensible defaults, so a
// minimal config file only needs the transcription endpoint. The API key is
// taken from the NOVA_TRANSCRIPTION_API_KEY environment variable when set,
// keeping the secret out of the file itself.
package config
