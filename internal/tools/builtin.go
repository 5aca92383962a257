package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// NewBuiltinRegistry returns a registry pre-loaded with the call-center tools.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(&weatherTool{})
	r.MustRegister(&secretWordTool{})
	r.MustRegister(&customerLookupTool{})
	return r
}

// weatherTool reports canned weather for a city.
type weatherTool struct{}

func (t *weatherTool) Name() string { return "get_weather" }

func (t *weatherTool) Description() string {
	return "Returns the current weather for the given city."
}

func (t *weatherTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	var params struct {
		City string `json:"city"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if params.City == "" {
		return Result{}, fmt.Errorf("%w: city is required", ErrInvalidArgs)
	}

	return NewSuccessResult(fmt.Sprintf("The weather in %s is sunny, 22°C.", params.City)), nil
}

// secretWordTool returns the demo secret word.
type secretWordTool struct{}

func (t *secretWordTool) Name() string { return "get_secret_word" }

func (t *secretWordTool) Description() string {
	return "Returns the secret word of the day."
}

func (t *secretWordTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	return NewSuccessResult("The secret word is: switchboard."), nil
}

// customerLookupTool resolves a customer record by account number.
type customerLookupTool struct{}

var customerDirectory = map[string]string{
	"1001": "Ada Lovelace, premium plan, account in good standing",
	"1002": "Alan Turing, basic plan, payment overdue",
	"1003": "Grace Hopper, premium plan, account in good standing",
}

func (t *customerLookupTool) Name() string { return "lookup_customer" }

func (t *customerLookupTool) Description() string {
	return "Looks up a customer record by account number."
}

func (t *customerLookupTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	var params struct {
		AccountNumber string `json:"account_number"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	account := strings.TrimSpace(params.AccountNumber)
	if account == "" {
		return Result{}, fmt.Errorf("%w: account_number is required", ErrInvalidArgs)
	}

	record, ok := customerDirectory[account]
	if !ok {
		return NewErrorResult(fmt.Sprintf("no customer found for account %s", account)), nil
	}
	return NewSuccessResult(record), nil
}
