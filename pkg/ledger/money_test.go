package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitAmount(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name            string
		amount          string
		feePercent      string
		platformFee     string
		creatorEarnings string
	}{
		{name: "default fee on 500", amount: "500.00", feePercent: "7", platformFee: "35.00", creatorEarnings: "465.00"},
		{name: "rounds half away from zero", amount: "1.50", feePercent: "7", platformFee: "0.11", creatorEarnings: "1.39"},
		{name: "rounds down below half", amount: "9.99", feePercent: "7", platformFee: "0.70", creatorEarnings: "9.29"},
		{name: "smallest amount", amount: "0.01", feePercent: "7", platformFee: "0.00", creatorEarnings: "0.01"},
		{name: "zero fee", amount: "100", feePercent: "0", platformFee: "0.00", creatorEarnings: "100.00"},
		{name: "full fee", amount: "100", feePercent: "100", platformFee: "100.00", creatorEarnings: "0.00"},
		{name: "fractional fee", amount: "33.33", feePercent: "2.5", platformFee: "0.83", creatorEarnings: "32.50"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			amount := decimal.RequireFromString(testCase.amount)
			platformFee, creatorEarnings, err := SplitAmount(amount, decimal.RequireFromString(testCase.feePercent))
			if err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
			if platformFee.StringFixed(2) != testCase.platformFee || creatorEarnings.StringFixed(2) != testCase.creatorEarnings {
				test.Fatalf("expected %s/%s, got %s/%s", testCase.platformFee, testCase.creatorEarnings, platformFee.StringFixed(2), creatorEarnings.StringFixed(2))
			}
			if !platformFee.Add(creatorEarnings).Equal(amount) {
				test.Fatalf("split does not sum to amount: %s + %s != %s", platformFee, creatorEarnings, amount)
			}
		})
	}
}

func TestSplitAmountRejectsInvalidInput(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name       string
		amount     string
		feePercent string
		wantErr    error
	}{
		{name: "zero amount", amount: "0", feePercent: "7", wantErr: ErrInvalidAmount},
		{name: "negative amount", amount: "-1", feePercent: "7", wantErr: ErrInvalidAmount},
		{name: "sub-cent amount", amount: "1.005", feePercent: "7", wantErr: ErrInvalidAmount},
		{name: "negative fee", amount: "10", feePercent: "-0.01", wantErr: ErrInvalidFeePercent},
		{name: "fee above hundred", amount: "10", feePercent: "100.01", wantErr: ErrInvalidFeePercent},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			_, _, err := SplitAmount(decimal.RequireFromString(testCase.amount), decimal.RequireFromString(testCase.feePercent))
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
			if ClassifyError(err) != ErrorKindInvalidArgument {
				test.Fatalf("expected invalid argument classification, got %q", ClassifyError(err))
			}
		})
	}
}

func TestFeeCalculatorSplitConservesCents(test *testing.T) {
	test.Parallel()
	calculator := DefaultFeeCalculator()
	for amount := AmountCents(1); amount <= 2000; amount++ {
		split, err := calculator.Split(amount)
		if err != nil {
			test.Fatalf("split %d failed: %v", amount, err)
		}
		if split.PlatformFee+split.CreatorEarnings != amount {
			test.Fatalf("split of %d does not conserve cents: %+v", amount, split)
		}
		if split.PlatformFee < 0 || split.CreatorEarnings < 0 {
			test.Fatalf("negative share for %d: %+v", amount, split)
		}
	}
}

func TestNewFeeCalculatorRejectsOutOfRange(test *testing.T) {
	test.Parallel()
	if _, err := NewFeeCalculator(decimal.NewFromInt(101)); !errors.Is(err, ErrInvalidFeePercent) {
		test.Fatalf("expected ErrInvalidFeePercent, got %v", err)
	}
	calculator, err := NewFeeCalculator(decimal.NewFromInt(10))
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	split, err := calculator.Split(AmountCents(1000))
	if err != nil || split.PlatformFee != 100 || split.CreatorEarnings != 900 {
		test.Fatalf("unexpected split %+v (%v)", split, err)
	}
}

func TestParseAmount(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		input   string
		want    AmountCents
		wantErr error
	}{
		{name: "two decimals", input: "500.00", want: 50000},
		{name: "integer", input: " 12 ", want: 1200},
		{name: "one decimal", input: "0.5", want: 50},
		{name: "three decimals", input: "1.005", wantErr: ErrInvalidAmount},
		{name: "zero", input: "0.00", wantErr: ErrInvalidAmount},
		{name: "negative", input: "-3", wantErr: ErrInvalidAmount},
		{name: "garbage", input: "ten", wantErr: ErrInvalidAmount},
		{name: "empty", input: "", wantErr: ErrInvalidAmount},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			amount, err := ParseAmount(testCase.input)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					test.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
			if amount != testCase.want {
				test.Fatalf("expected %d, got %d", testCase.want, amount)
			}
		})
	}
}

func TestAmountCentsString(test *testing.T) {
	test.Parallel()
	if AmountCents(46500).String() != "465.00" {
		test.Fatalf("unexpected rendering %q", AmountCents(46500).String())
	}
	if AmountCents(5).String() != "0.05" {
		test.Fatalf("unexpected rendering %q", AmountCents(5).String())
	}
}
