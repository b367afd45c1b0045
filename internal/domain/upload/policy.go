package upload

import (
	"regexp"
	"strings"

	"wpguard/internal/platform/config"
)

// Policy holds the parameters of Decide.
type Policy struct {
	MinNameLength int
	Blacklist     *regexp.Regexp
	MinPixels     int64
	MaxPixels     int64
}

var defaultBlacklist = regexp.MustCompile(config.DefaultBlacklist)

// DefaultPolicy returns the stock thresholds and blacklist.
func DefaultPolicy() Policy {
	return Policy{
		MinNameLength: config.DefaultMinNameLength,
		Blacklist:     defaultBlacklist,
		MinPixels:     config.DefaultMinPixels,
		MaxPixels:     config.DefaultMaxPixels,
	}
}

// PolicyFromConfig compiles the upload section of the config.
func PolicyFromConfig(cfg config.UploadConfig) (Policy, error) {
	p := DefaultPolicy()
	p.MinNameLength = cfg.MinNameLength
	p.MinPixels = cfg.MinPixels
	p.MaxPixels = cfg.MaxPixels
	if cfg.Blacklist != "" && cfg.Blacklist != config.DefaultBlacklist {
		re, err := regexp.Compile(cfg.Blacklist)
		if err != nil {
			return Policy{}, err
		}
		p.Blacklist = re
	}
	return p, nil
}

// Decide applies the upload rules to name and the probed dimensions. The
// first failing rule wins. ok reports whether the dimensions could be read.
//
// Name length is counted in bytes, so multi-byte names reach the minimum
// with fewer characters.
func Decide(p Policy, name string, dims Dimensions, ok bool) Verdict {
	if len(name) < p.MinNameLength {
		return Rejected(ReasonNameTooShort)
	}
	if strings.Contains(name, "..") {
		return Rejected(ReasonMultipleDots)
	}
	if p.Blacklist != nil && p.Blacklist.MatchString(name) {
		return Rejected(ReasonBlacklisted)
	}
	if !ok {
		return Rejected(ReasonFaultyImage)
	}

	pixels := dims.Pixels()
	if pixels > p.MaxPixels {
		return Rejected(ReasonTooLarge)
	}
	if pixels < p.MinPixels {
		return Rejected(ReasonTooSmall)
	}

	return Approved(strings.ReplaceAll(name, "_", "-"))
}
