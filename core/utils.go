package core

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// SeedEnvVar names the environment variable read by GetSeed.
const SeedEnvVar = "HANNDB_SEED"

// GetSeed receives a seed value for random number generation from the HANNDB_SEED environment variable.
// It falls back to the current time when the variable is unset or unparsable.
func GetSeed() int64 {
	seedStr := os.Getenv(SeedEnvVar)
	if seedStr != "" {
		if seed, err := strconv.ParseInt(seedStr, 10, 64); err == nil {
			log.Debug().Msgf("Using seed from %s value: %d", SeedEnvVar, seed)
			return seed
		}
		log.Warn().Msgf("Failed to parse %s value: %s", SeedEnvVar, seedStr)
	}

	seed := time.Now().UnixNano()
	log.Debug().Msgf("Using current time as seed: %d", seed)
	return seed
}
