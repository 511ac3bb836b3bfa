// Package hmackey generates the shared secrets the wallet signs with.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
)

// Key targets accepted by -for.
const (
	TargetJWT     = "jwt"
	TargetPartner = "partner"
	TargetAll     = "all"
)

// minJWTBytes matches the shortest HS256 key the token service accepts.
const minJWTBytes = 32

var targetEnv = map[string]string{
	TargetJWT:     "PASSWALLET_JWT_SECRET",
	TargetPartner: "PASSWALLET_PARTNER_SECRET",
}

// Config holds configuration for key generation.
type Config struct {
	Bytes  int
	Target string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32, Target: TargetAll}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes per key (default: 32)")
	fs.StringVar(&cfg.Target, "for", cfg.Target, "which secret to generate: jwt, partner, or all")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the requested keys and writes them to out as env assignments.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	var targets []string
	switch cfg.Target {
	case TargetJWT, TargetPartner:
		targets = []string{cfg.Target}
	case TargetAll, "":
		targets = []string{TargetJWT, TargetPartner}
	default:
		return fmt.Errorf("unknown target %q", cfg.Target)
	}

	for _, target := range targets {
		if target == TargetJWT && cfg.Bytes < minJWTBytes {
			return fmt.Errorf("jwt secret needs at least %d bytes", minJWTBytes)
		}
		buf := make([]byte, cfg.Bytes)
		if _, err := io.ReadFull(reader, buf); err != nil {
			return fmt.Errorf("generate random bytes: %w", err)
		}
		if _, err := fmt.Fprintf(out, "%s=%s\n", targetEnv[target], hex.EncodeToString(buf)); err != nil {
			return err
		}
	}
	return nil
}
