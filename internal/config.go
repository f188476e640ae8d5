package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=5000"`
	DebugPort       int           `env:"DEBUG_PORT,default=5001"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=./data/badger"`
	BadgerInMemory  bool          `env:"BADGER_IN_MEMORY,default=false"`
	BlugeFilepath   string        `env:"BLUGE_FILEPATH"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	SweepPeriod     time.Duration `env:"SWEEP_PERIOD,default=15s"`
	ExpiryThreshold time.Duration `env:"EXPIRY_THRESHOLD,default=10s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	CensoredWords   string        `env:"CENSORED_WORDS"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES,default=65536"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// WordList splits a comma separated list, dropping blanks and duplicates.
func WordList(str string) []string {
	words := lo.Map(strings.Split(str, ","), func(w string, _ int) string {
		return strings.TrimSpace(w)
	})
	return lo.Uniq(lo.Compact(words))
}
