// Package receipt renders downloadable withdrawal receipts
package receipt

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/simonkvalheim/hm9-console/internal/model"
)

// DateLayout is how receipt dates are printed, e.g. "March 5, 2025, 02:30 PM"
const DateLayout = "January 2, 2006, 03:04 PM"

// ContentType is the media type of a rendered receipt
const ContentType = "text/plain; charset=utf-8"

// Filename returns the download name of the receipt for withdrawal id
func Filename(id string) string {
	return "withdrawal-receipt-" + id + ".txt"
}

// Render returns the plain-text receipt of w. Dates are printed in loc.
func Render(w model.WithdrawResponse, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	b.WriteString("WITHDRAWAL RECEIPT\n")
	b.WriteString("==================\n")
	fmt.Fprintf(&b, "Transaction ID: %s\n", w.ID)
	fmt.Fprintf(&b, "Amount: %s\n", FormatUSD(w.Amount.InexactFloat64()))
	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(w.Status)))
	fmt.Fprintf(&b, "Date: %s\n", w.CreatedAt.In(loc).Format(DateLayout))
	b.WriteString("\n")
	b.WriteString("ACCOUNT DETAILS\n")
	b.WriteString("===============\n")
	fmt.Fprintf(&b, "Account Holder: %s\n", w.AccountHolder)
	fmt.Fprintf(&b, "Bank Name: %s\n", w.BankName)
	fmt.Fprintf(&b, "Account Number: %s\n", MaskAccountNumber(w.AccountNumber))
	fmt.Fprintf(&b, "Routing Number: %s\n", w.RoutingNumber)
	fmt.Fprintf(&b, "Account Type: %s\n", cases.Title(language.AmericanEnglish).String(string(w.AccountType)))
	b.WriteString("\n")
	b.WriteString("Thank you for using our service.\n")
	return b.String()
}

// FormatUSD formats amount as US dollars with thousands separators, e.g. "$1,234.50"
func FormatUSD(amount float64) string {
	printer := message.NewPrinter(language.AmericanEnglish)
	if amount < 0 {
		return "-" + printer.Sprintf("$%.2f", -amount)
	}
	return printer.Sprintf("$%.2f", amount)
}

// MaskAccountNumber replaces all but the last four characters with '*'
func MaskAccountNumber(n string) string {
	r := []rune(n)
	if len(r) <= 4 {
		return n
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
