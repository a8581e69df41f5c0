// Package tiers converts between textual ranked tiers and their numeric
// ladder positions, and averages tiers across a team or match.
package tiers

import (
	"errors"
	"fmt"
	"math"
)

// Unranked players carry this marker and are excluded from averages.
const Unranked = "UNRANKED"

var ladder = []string{
	"BRONZE V", "BRONZE IV", "BRONZE III", "BRONZE II", "BRONZE I",
	"SILVER V", "SILVER IV", "SILVER III", "SILVER II", "SILVER I",
	"GOLD V", "GOLD IV", "GOLD III", "GOLD II", "GOLD I",
	"PLATINUM V", "PLATINUM IV", "PLATINUM III", "PLATINUM II", "PLATINUM I",
	"DIAMOND V", "DIAMOND IV", "DIAMOND III", "DIAMOND II", "DIAMOND I",
	"MASTER I",
	"CHALLENGER I",
}

// ErrNoRankedTiers is returned when an average is requested over a set with
// no ranked entries.
var ErrNoRankedTiers = errors.New("tiers: no ranked tiers to average")

// Numeric returns the ladder position of a textual tier.
func Numeric(textual string) (int, error) {
	for i, t := range ladder {
		if t == textual {
			return i, nil
		}
	}
	return 0, fmt.Errorf("tiers: unconfigured tier %q", textual)
}

// Textual returns the textual tier at a ladder position.
func Textual(numeric int) (string, error) {
	if numeric < 0 || numeric >= len(ladder) {
		return "", fmt.Errorf("tiers: unconfigured tier position %d", numeric)
	}
	return ladder[numeric], nil
}

// Average rounds the mean ladder position of the ranked entries back to a
// textual tier. UNRANKED entries are ignored.
func Average(textualTiers []string) (string, error) {
	sum, n := 0, 0
	for _, t := range textualTiers {
		if t == Unranked {
			continue
		}
		num, err := Numeric(t)
		if err != nil {
			return "", err
		}
		sum += num
		n++
	}
	if n == 0 {
		return "", ErrNoRankedTiers
	}
	return Textual(int(math.Round(float64(sum) / float64(n))))
}
