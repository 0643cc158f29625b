package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is an integer amount that accepts a JSON number or a numeric string.
type Amount int64

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if string(raw) == "null" {
		*a = 0
		return nil
	}
	s := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: amount: %v", ErrValidation, err)
		}
		s = strings.TrimSpace(s)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: amount %q is not an integer", ErrValidation, s)
	}
	*a = Amount(v)
	return nil
}

type TapRequest struct {
	UID string `json:"uid"`
}

func (r *TapRequest) Validate() error {
	r.UID = strings.TrimSpace(r.UID)
	if r.UID == "" {
		return fmt.Errorf("%w: UID required", ErrValidation)
	}
	return nil
}

type RegisterRequest struct {
	UID            string  `json:"uid"`
	Name           string  `json:"name"`
	InitialBalance *Amount `json:"initialBalance"`
}

func (r *RegisterRequest) Validate() error {
	r.UID = strings.TrimSpace(r.UID)
	r.Name = strings.TrimSpace(r.Name)
	if r.UID == "" || r.Name == "" || r.InitialBalance == nil {
		return fmt.Errorf("%w: missing required fields", ErrValidation)
	}
	if *r.InitialBalance < 0 {
		return fmt.Errorf("%w: initialBalance must be >= 0", ErrValidation)
	}
	return nil
}

// AmountRequest is the body of payment and top-up calls.
type AmountRequest struct {
	UID    string `json:"uid"`
	Amount Amount `json:"amount"`
}

func (r *AmountRequest) Validate() error {
	r.UID = strings.TrimSpace(r.UID)
	if r.UID == "" {
		return fmt.Errorf("%w: UID and amount required", ErrValidation)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	return nil
}
