// Package classify decides what a failed void response means.
//
// The remote service reports validation problems as human-readable text.
// All parsing of that text lives here so the message format can change
// without touching the scheduler or the transaction.
package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/juancollazo-ch/bulk-void-service/internal/models"
)

// DefaultTolerance is two minor currency units.
const DefaultTolerance = 0.02

// floatSlack absorbs binary representation error, e.g. 100.01-100.00.
const floatSlack = 1e-9

const (
	lineTotalMarker     = "line total"
	invalidStatusMarker = "not of valid status for modification"
)

var decimalPattern = regexp.MustCompile(`\d+\.\d+`)

// Decode parses an error body from the remote API.
func Decode(body []byte) (models.ErrorResponse, error) {
	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.ErrorResponse{}, fmt.Errorf("invalid error body: %w", err)
	}
	return resp, nil
}

// Classify turns a non-success void response into an outcome. lastKnownStatus
// is the status read back before the mutate call.
//
// When several messages are present the least severe supported outcome wins:
// AlreadyVoided, then RetriableValidationError(rounding), then
// FatalValidationError.
func Classify(resp models.ErrorResponse, lastKnownStatus string, tolerance float64) models.Outcome {
	msgs := resp.Messages()
	if len(msgs) == 0 {
		msg := "void rejected without validation errors"
		if resp.Message != "" {
			msg = resp.Message
		}
		return models.FatalValidation(msg)
	}

	voided := strings.EqualFold(lastKnownStatus, models.StatusVoided) ||
		strings.EqualFold(resp.ElementStatus(), models.StatusVoided)

	best := models.FatalValidation(strings.Join(msgs, "; "))
	for _, msg := range msgs {
		outcome, ok := classifyMessage(msg, voided, tolerance)
		if ok && severity(outcome.Kind) < severity(best.Kind) {
			best = outcome
		}
	}
	return best
}

func classifyMessage(msg string, voided bool, tolerance float64) (models.Outcome, bool) {
	lower := strings.ToLower(msg)

	if strings.Contains(lower, invalidStatusMarker) && voided {
		return models.AlreadyVoided(msg), true
	}

	if strings.Contains(lower, lineTotalMarker) {
		actual, expected, ok := LineTotals(msg)
		if ok && WithinTolerance(actual, expected, tolerance) {
			return models.RoundingTolerated(fmt.Sprintf(
				"%s (difference %.4f)", msg, math.Abs(actual-expected))), true
		}
	}

	return models.Outcome{}, false
}

// LineTotals extracts the first two decimal numbers of a message as
// (actual, expected).
func LineTotals(msg string) (actual, expected float64, ok bool) {
	nums := decimalPattern.FindAllString(msg, 2)
	if len(nums) < 2 {
		return 0, 0, false
	}
	a, err := strconv.ParseFloat(nums[0], 64)
	if err != nil {
		return 0, 0, false
	}
	e, err := strconv.ParseFloat(nums[1], 64)
	if err != nil {
		return 0, 0, false
	}
	return a, e, true
}

// WithinTolerance reports whether |actual-expected| <= tolerance.
func WithinTolerance(actual, expected, tolerance float64) bool {
	return math.Abs(actual-expected) <= tolerance+floatSlack
}

func severity(kind models.OutcomeKind) int {
	switch kind {
	case models.OutcomeAlreadyVoided:
		return 0
	case models.OutcomeRetriableValidationError:
		return 1
	default:
		return 2
	}
}
