// internal/risk/features.go
package risk

import (
	"encoding/json"
	"strconv"
	"strings"

	commonerrors "microloan-workers/internal/common/errors"
)

// FeatureColumns is the fixed, ordered feature schema of the frozen model.
// The scorer and explainer consume vectors in exactly this order; any
// reordering silently corrupts scores.
var FeatureColumns = []string{
	"amount",
	"duration",
	"monthly_income",
	"credit_history_encoded",
	"avg_balance",
	"txn_frequency",
}

// NumFeatures is the width of every encoded vector.
const NumFeatures = 6

// FeatureVector is one encoded application in FeatureColumns order.
type FeatureVector []float64

// creditMapping encodes the credit-history categories. Lookup is total:
// unknown or unmapped categories encode as 0, the lowest-risk-coded value.
var creditMapping = map[string]float64{
	"none":      0,
	"fair":      1,
	"good":      2,
	"excellent": 3,
}

// MapCreditHistory maps a credit-history category to its encoded value.
// Case-insensitive; never fails.
func MapCreditHistory(history string) float64 {
	return creditMapping[strings.ToLower(history)]
}

// FlexNumber accepts JSON numbers and numeric strings so loosely-typed
// upstream payloads still encode. A present but unparseable value is
// recorded and rejected field-by-field in Encode.
type FlexNumber struct {
	Value float64
	Valid bool // parseable as a number
	Set   bool // present and non-null in the input
}

func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	f.Set = true

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.Value = num
		f.Valid = true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			f.Value = v
			f.Valid = true
		}
	}
	return nil
}

// RawApplication is the typed input schema of the encoder.
type RawApplication struct {
	Amount        FlexNumber          `json:"amount"`
	Duration      FlexNumber          `json:"duration"`
	MonthlyIncome FlexNumber          `json:"monthlyIncome"`
	CreditHistory *string             `json:"creditHistory"`
	MobileMoney   *MobileMoneyHistory `json:"mobileMoneyHistory"`
}

type MobileMoneyHistory struct {
	AverageBalance       FlexNumber `json:"averageBalance"`
	TransactionFrequency FlexNumber `json:"transactionFrequency"`
}

// Encode converts a raw application into the fixed feature vector. It is a
// pure function: the first missing or non-coercible field fails with a
// field-qualified validation error, category lookup never fails.
func Encode(raw *RawApplication) (FeatureVector, error) {
	if raw == nil {
		return nil, commonerrors.NewValidationError("application", "required document missing")
	}

	amount, err := requireNumber("amount", raw.Amount)
	if err != nil {
		return nil, err
	}
	duration, err := requireNumber("duration", raw.Duration)
	if err != nil {
		return nil, err
	}
	income, err := requireNumber("monthlyIncome", raw.MonthlyIncome)
	if err != nil {
		return nil, err
	}
	if raw.CreditHistory == nil {
		return nil, commonerrors.NewValidationError("creditHistory", "required field missing")
	}
	if raw.MobileMoney == nil {
		return nil, commonerrors.NewValidationError("mobileMoneyHistory", "required field missing")
	}
	avgBalance, err := requireNumber("mobileMoneyHistory.averageBalance", raw.MobileMoney.AverageBalance)
	if err != nil {
		return nil, err
	}
	txnFrequency, err := requireNumber("mobileMoneyHistory.transactionFrequency", raw.MobileMoney.TransactionFrequency)
	if err != nil {
		return nil, err
	}

	return FeatureVector{
		amount,
		duration,
		income,
		MapCreditHistory(*raw.CreditHistory),
		avgBalance,
		txnFrequency,
	}, nil
}

func requireNumber(field string, n FlexNumber) (float64, error) {
	if !n.Set {
		return 0, commonerrors.NewValidationError(field, "required field missing")
	}
	if !n.Valid {
		return 0, commonerrors.NewValidationError(field, "value is not numeric")
	}
	return n.Value, nil
}
