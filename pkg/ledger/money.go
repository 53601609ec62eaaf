package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountCents is an integer currency in cents.
type AmountCents int64

// NewAmountCents validates an amount and ensures it is strictly positive.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return AmountCents(raw), nil
}

// ParseAmount parses a decimal currency string such as "500.00" into cents.
func ParseAmount(raw string) (AmountCents, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return NewAmountFromDecimal(value)
}

// NewAmountFromDecimal converts a positive decimal with at most two fractional digits into cents.
func NewAmountFromDecimal(value decimal.Decimal) (AmountCents, error) {
	if !value.IsPositive() {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !value.Equal(value.Round(amountScale)) {
		return 0, fmt.Errorf("%w: more than two decimal places", ErrInvalidAmount)
	}
	return AmountCents(value.Shift(amountScale).IntPart()), nil
}

// Int64 exposes the raw cents.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// Decimal returns the amount in currency units.
func (amount AmountCents) Decimal() decimal.Decimal {
	return decimal.New(int64(amount), -amountScale)
}

// String renders the amount with two fixed decimals.
func (amount AmountCents) String() string {
	return amount.Decimal().StringFixed(amountScale)
}

func floorAtZero(amount AmountCents) AmountCents {
	if amount < 0 {
		return 0
	}
	return amount
}

// FeeSplit is the platform and creator share of one purchase.
type FeeSplit struct {
	PlatformFee     AmountCents
	CreatorEarnings AmountCents
}

var (
	percentBase     = decimal.NewFromInt(percentBaseValue)
	defaultFeeValue = decimal.NewFromInt(DefaultPlatformFeePercent)
)

// SplitAmount divides an amount into platform fee and creator earnings.
// The fee is rounded to two decimals half away from zero and the creator receives the remainder,
// so platformFee + creatorEarnings == amount exactly.
func SplitAmount(amount decimal.Decimal, feePercent decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: more than two decimal places", ErrInvalidAmount)
	}
	if err := validateFeePercent(feePercent); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	platformFee := amount.Mul(feePercent).Div(percentBase).Round(amountScale)
	return platformFee, amount.Sub(platformFee), nil
}

func validateFeePercent(feePercent decimal.Decimal) error {
	if feePercent.IsNegative() || feePercent.GreaterThan(percentBase) {
		return fmt.Errorf("%w: must be within [0, 100], got %s", ErrInvalidFeePercent, feePercent.String())
	}
	return nil
}

// FeeCalculator applies a fixed fee percentage to cent amounts.
type FeeCalculator struct {
	feePercent decimal.Decimal
}

// NewFeeCalculator validates the fee percentage.
func NewFeeCalculator(feePercent decimal.Decimal) (FeeCalculator, error) {
	if err := validateFeePercent(feePercent); err != nil {
		return FeeCalculator{}, err
	}
	return FeeCalculator{feePercent: feePercent}, nil
}

// DefaultFeeCalculator uses the platform fee constant.
func DefaultFeeCalculator() FeeCalculator {
	return FeeCalculator{feePercent: defaultFeeValue}
}

// FeePercent returns the configured percentage.
func (calculator FeeCalculator) FeePercent() decimal.Decimal {
	return calculator.feePercent
}

// Split computes the fee split of a positive cent amount.
func (calculator FeeCalculator) Split(amount AmountCents) (FeeSplit, error) {
	platformFee, creatorEarnings, err := SplitAmount(amount.Decimal(), calculator.feePercent)
	if err != nil {
		return FeeSplit{}, err
	}
	return FeeSplit{
		PlatformFee:     AmountCents(platformFee.Shift(amountScale).IntPart()),
		CreatorEarnings: AmountCents(creatorEarnings.Shift(amountScale).IntPart()),
	}, nil
}
