// Package validation checks withdrawal requests before they are submitted to the banking API.
//
// Every validator returns the empty string for valid input and a user-facing
// message otherwise. Validators never panic and perform no I/O.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/hm9-console/internal/model"
)

// Field names a withdrawal form field, matching its JSON key
type Field string

const (
	FieldAmount        Field = "amount"
	FieldAccountHolder Field = "accountHolder"
	FieldBankName      Field = "bankName"
	FieldAccountNumber Field = "accountNumber"
	FieldRoutingNumber Field = "routingNumber"
)

// MaxAmount is the largest amount a single withdrawal may request
var MaxAmount = decimal.RequireFromString("999999.99")

const maxNameLength = 100

// whitespace is the character class of a browser regexp's \s, which unlike
// RE2's also covers Unicode spaces such as U+00A0
const whitespace = `\s\p{Zs}\x{2028}\x{2029}\x{FEFF}`

var (
	amountPattern     = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	holderNamePattern = regexp.MustCompile(`^[a-zA-Z` + whitespace + `\-'.]+$`)
	digitsPattern     = regexp.MustCompile(`^\d+$`)
	usRoutingPattern  = regexp.MustCompile(`^\d{9}$`)
	swiftCodePattern  = regexp.MustCompile(`(?i)^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	separatorsPattern = regexp.MustCompile(`[` + whitespace + `-]`)
)

// Amount checks a withdrawal amount. A nil balance skips the funds check.
// Rules apply in order: positivity, balance, maximum, decimal places.
func Amount(amount decimal.Decimal, balance *decimal.Decimal) string {
	if !amount.IsPositive() {
		return "Amount must be greater than 0"
	}
	if balance != nil && amount.GreaterThan(*balance) {
		return "Insufficient funds"
	}
	if amount.GreaterThan(MaxAmount) {
		return "Amount too large"
	}
	// Checked against the textual value so no float rounding hides extra digits
	if !amountPattern.MatchString(amount.String()) {
		return "Amount can have maximum 2 decimal places"
	}
	return ""
}

// AccountHolder checks the name on the receiving account
func AccountHolder(name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "Account holder name is required"
	case utf8.RuneCountInString(name) < 2:
		return "Name must be at least 2 characters"
	case utf8.RuneCountInString(name) > maxNameLength:
		return "Name is too long"
	case !holderNamePattern.MatchString(name):
		return "Name contains invalid characters"
	}
	return ""
}

// BankName checks the name of the receiving bank
func BankName(name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "Bank name is required"
	case utf8.RuneCountInString(name) < 2:
		return "Bank name must be at least 2 characters"
	case utf8.RuneCountInString(name) > maxNameLength:
		return "Bank name is too long"
	}
	return ""
}

// AccountNumber checks the receiving account number. Spaces and hyphens are ignored.
func AccountNumber(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Account number is required"
	}

	digits := StripSeparators(raw)
	if !digitsPattern.MatchString(digits) {
		return "Account number must contain only numbers"
	}
	if len(digits) < 4 || len(digits) > 20 {
		return "Account number must be between 4 and 20 digits"
	}
	return ""
}

// RoutingNumber accepts a 9-digit US routing number or an 8 or 11 character SWIFT code
func RoutingNumber(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Routing number/SWIFT code is required"
	}

	code := StripSeparators(raw)
	if !usRoutingPattern.MatchString(code) && !swiftCodePattern.MatchString(code) {
		return "Must be a valid 9-digit routing number or 8-11 character SWIFT code"
	}
	return ""
}

// StripSeparators removes whitespace and hyphens
func StripSeparators(s string) string {
	return separatorsPattern.ReplaceAllString(s, "")
}

// Errors maps each failing field to its message. A field absent from the map is valid.
type Errors map[Field]string

// Valid returns true if no field failed
func (e Errors) Valid() bool {
	return len(e) == 0
}

// Clear drops the error of a single field, e.g. when the user edits it
func (e Errors) Clear(field Field) {
	delete(e, field)
}

// Error implements error so a failed form can travel through error returns
func (e Errors) Error() string {
	return "withdrawal request has invalid fields"
}

// Form runs every field validator over req. Submission is permitted iff the result is empty.
func Form(req model.WithdrawRequest, balance *decimal.Decimal) Errors {
	errs := Errors{}

	checks := []struct {
		field Field
		msg   string
	}{
		{FieldAmount, Amount(req.Amount, balance)},
		{FieldAccountHolder, AccountHolder(req.AccountHolder)},
		{FieldBankName, BankName(req.BankName)},
		{FieldAccountNumber, AccountNumber(req.AccountNumber)},
		{FieldRoutingNumber, RoutingNumber(req.RoutingNumber)},
	}
	for _, c := range checks {
		if c.msg != "" {
			errs[c.field] = c.msg
		}
	}

	return errs
}

// Normalize returns the canonical form of req to send to the banking API.
// It is applied after validation, never before.
func Normalize(req model.WithdrawRequest) model.WithdrawRequest {
	out := req
	out.AccountHolder = strings.TrimSpace(req.AccountHolder)
	out.BankName = strings.TrimSpace(req.BankName)
	out.AccountNumber = StripSeparators(req.AccountNumber)
	out.RoutingNumber = strings.ToUpper(StripSeparators(req.RoutingNumber))

	out.Notes = nil
	if req.Notes != nil {
		if notes := strings.TrimSpace(*req.Notes); notes != "" {
			out.Notes = &notes
		}
	}

	return out
}
