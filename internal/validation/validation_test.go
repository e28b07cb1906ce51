package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name    string
		login   string
		errMsg  string
		wantErr bool
	}{
		{name: "valid login - lowercase", login: "alice"},
		{name: "valid login - with underscore", login: "alice_smith"},
		{name: "valid login - min length", login: "abcd"},
		{name: "valid login - max length", login: "a1234567890123456789"},
		{name: "empty login", login: "", wantErr: true, errMsg: "login cannot be empty"},
		{name: "too short", login: "abc", wantErr: true, errMsg: "at least 4 symbols"},
		{name: "too long", login: strings.Repeat("a", 21), wantErr: true, errMsg: "more than 20 symbols"},
		{name: "with dash", login: "alice-smith", wantErr: true, errMsg: "can only contain"},
		{name: "cyrillic", login: "алиса", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogin(tt.login)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("1234"))
	assert.NoError(t, ValidatePassword(strings.Repeat("x", 24)))
	assert.Error(t, ValidatePassword(""))
	assert.Error(t, ValidatePassword("123"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", 25)))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 45)+"@example.com"))
}

func TestStruct(t *testing.T) {
	type request struct {
		Login    string `json:"login" validate:"required,login"`
		Password string `json:"password" validate:"required,min=4,max=24"`
	}

	assert.NoError(t, Struct(request{Login: "alice", Password: "secret"}))

	err := Struct(request{Login: "a-b", Password: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login can only contain")
	assert.Contains(t, err.Error(), "password must be at least 4")

	err = Struct(request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login is required")
}
