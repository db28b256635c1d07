// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package validation

import (
	"strings"
	"testing"
)

type userForm struct {
	AccountNumber string `json:"account_number" validate:"account"`
	Status        string `json:"status" validate:"oneof=active disabled on_hold"`
	DataLimitGB   int64  `json:"data_limit" validate:"min=0"`
	Note          string `json:"note" validate:"max=10"`
}

type nodeForm struct {
	Name string `json:"name" validate:"required"`
	Cert string `json:"client_cert" validate:"omitempty,pem"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	form := userForm{AccountNumber: "abc123", Status: "active", DataLimitGB: 5}
	if err := ValidateStruct(&form); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_AccountNumber(t *testing.T) {
	tests := []struct {
		name    string
		account string
		wantErr bool
	}{
		{"valid", "abc123", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"undefined literal", "undefined", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&userForm{AccountNumber: tt.account, Status: "active"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				msg := err.FieldErrors()["account_number"]
				if msg != "account_number must be a valid account number" {
					t.Errorf("unexpected message %q", msg)
				}
			}
		})
	}
}

func TestValidateStruct_FieldErrorsUseJSONNames(t *testing.T) {
	err := ValidateStruct(&userForm{AccountNumber: "a", Status: "bogus", DataLimitGB: -1, Note: "far too long a note"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	fields := err.FieldErrors()
	want := map[string]string{
		"status":     "status must be one of: active disabled on_hold",
		"data_limit": "data_limit must be at least 0",
		"note":       "note must be at most 10 characters",
	}
	for field, msg := range want {
		if fields[field] != msg {
			t.Errorf("FieldErrors()[%q] = %q, want %q", field, fields[field], msg)
		}
	}
	if len(err.Errors()) != 3 {
		t.Errorf("expected 3 errors, got %d", len(err.Errors()))
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected joined message, got %q", err.Error())
	}
}

func TestValidateStruct_PEM(t *testing.T) {
	if err := ValidateStruct(&nodeForm{Name: "n1"}); err != nil {
		t.Fatalf("empty cert should pass: %v", err)
	}
	pem := "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----"
	if err := ValidateStruct(&nodeForm{Name: "n1", Cert: pem}); err != nil {
		t.Fatalf("valid cert rejected: %v", err)
	}
	err := ValidateStruct(&nodeForm{Name: "n1", Cert: "not a cert"})
	if err == nil || err.FieldErrors()["client_cert"] == "" {
		t.Fatalf("expected client_cert error, got %v", err)
	}
}
