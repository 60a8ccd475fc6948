package calculator

import "errors"

// CalculatePremium returns how far a claim token trades above (positive) or
// below (negative) its redemption value, as a fraction of that value.
func CalculatePremium(price, nav float64) (float64, error) {
	if nav <= 0 {
		return 0, errors.New("nav must be positive")
	}
	return price/nav - 1, nil
}
