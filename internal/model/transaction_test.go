package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestWithdrawRequest_UnmarshalAmount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "json number", body: `{"amount": 100.5}`, want: "100.5"},
		{name: "numeric string", body: `{"amount": "250.75"}`, want: "250.75"},
		{name: "padded string", body: `{"amount": " 12 "}`, want: "12"},
		{name: "blank string", body: `{"amount": ""}`, want: "0"},
		{name: "not a number", body: `{"amount": "abc"}`, want: "0"},
		{name: "null", body: `{"amount": null}`, want: "0"},
		{name: "missing", body: `{}`, want: "0"},
		{name: "three decimals kept", body: `{"amount": 100.999}`, want: "100.999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req WithdrawRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got := req.Amount.String(); got != tt.want {
				t.Errorf("Amount = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithdrawRequest_UnmarshalFields(t *testing.T) {
	body := `{"amount": 10, "accountHolder": "Jane Doe", "bankName": "Fjord Bank",
		"accountNumber": "1234-5678", "routingNumber": "021000021",
		"accountType": "savings", "notes": "rent"}`

	var req WithdrawRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if req.AccountHolder != "Jane Doe" || req.BankName != "Fjord Bank" {
		t.Errorf("names = %q/%q", req.AccountHolder, req.BankName)
	}
	if req.AccountType != AccountTypeSavings {
		t.Errorf("AccountType = %v, want savings", req.AccountType)
	}
	if req.Notes == nil || *req.Notes != "rent" {
		t.Errorf("Notes = %v, want rent", req.Notes)
	}
}

func TestWithdrawRequest_MarshalNumberAmount(t *testing.T) {
	req := WithdrawRequest{Amount: decimal.RequireFromString("100.25"), AccountType: AccountTypeChecking}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := raw["amount"].(float64); !ok {
		t.Errorf("amount encoded as %T, want number", raw["amount"])
	}
	if _, ok := raw["notes"]; ok {
		t.Error("unset notes should be omitted")
	}
}

func TestWithdrawRequest_Validate(t *testing.T) {
	tests := []struct {
		name        string
		accountType AccountType
		wantErr     error
	}{
		{name: "checking", accountType: AccountTypeChecking},
		{name: "savings", accountType: AccountTypeSavings},
		{name: "business", accountType: AccountTypeBusiness},
		{name: "loan is not offered", accountType: "loan", wantErr: ErrInvalidAccountType},
		{name: "empty", accountType: "", wantErr: ErrInvalidAccountType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithdrawRequest{AccountType: tt.accountType}.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransferRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request TransferRequest
		wantErr error
	}{
		{
			name:    "valid",
			request: TransferRequest{ToUserID: "u1", Amount: decimal.NewFromInt(5)},
		},
		{
			name:    "missing recipient",
			request: TransferRequest{Amount: decimal.NewFromInt(5)},
			wantErr: ErrRecipientRequired,
		},
		{
			name:    "zero amount",
			request: TransferRequest{ToUserID: "u1"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			request: TransferRequest{ToUserID: "u1", Amount: decimal.NewFromInt(-1)},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.request.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
