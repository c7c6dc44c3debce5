package types

import "fmt"

// ValidationError represents a validation failure with details.
// Validation happens before any event is recorded.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("assetledger: validation failed for %s: %s", e.Field, e.Message)
}

// ValidateAmount rejects non-positive amounts.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ValidationError{Field: "amount", Message: fmt.Sprintf("must be positive, got %d", amount)}
	}
	return nil
}
