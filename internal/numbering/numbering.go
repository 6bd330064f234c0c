// Package numbering implements counter state transitions and letter number
// formatting for numbering configs shared across document templates.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ResetPolicy string

const (
	ResetNever   ResetPolicy = "never"
	ResetYearly  ResetPolicy = "yearly"
	ResetMonthly ResetPolicy = "monthly"
)

// ParsePolicy validates a stored counter_reset value.
func ParsePolicy(raw string) (ResetPolicy, error) {
	switch ResetPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case ResetNever:
		return ResetNever, nil
	case ResetYearly:
		return ResetYearly, nil
	case ResetMonthly:
		return ResetMonthly, nil
	default:
		return "", fmt.Errorf("unknown counter reset policy %q", raw)
	}
}

// NextState returns the counter state after allocating one number at the
// given instant. Crossing a reset boundary (new year for yearly, new
// year or month for monthly) zeroes the counter before the increment, so
// the first allocation of a fresh period is always 1.
func NextState(policy ResetPolicy, storedYear, storedMonth, lastNumber int, now time.Time) (year, month, next int) {
	year = now.Year()
	month = int(now.Month())

	switch policy {
	case ResetYearly:
		if storedYear != year {
			return year, month, 1
		}
	case ResetMonthly:
		if storedYear != year || storedMonth != month {
			return year, month, 1
		}
	}
	return year, month, lastNumber + 1
}

var romanMonths = [...]string{
	"I", "II", "III", "IV", "V", "VI",
	"VII", "VIII", "IX", "X", "XI", "XII",
}

// Render substitutes placeholders in a numbering format string:
//
//	{seq}         zero-padded sequence number
//	{code}        the config's unit code
//	{month}       two-digit month
//	{roman_month} month as a roman numeral
//	{year}        four-digit year
//
// An empty format renders the padded sequence alone.
func Render(format string, seq, padding int, code string, now time.Time) string {
	if padding <= 0 {
		padding = 3
	}
	padded := fmt.Sprintf("%0*d", padding, seq)
	if strings.TrimSpace(format) == "" {
		return padded
	}
	replacer := strings.NewReplacer(
		"{seq}", padded,
		"{code}", code,
		"{month}", fmt.Sprintf("%02d", int(now.Month())),
		"{roman_month}", romanMonths[int(now.Month())-1],
		"{year}", strconv.Itoa(now.Year()),
	)
	return replacer.Replace(format)
}
