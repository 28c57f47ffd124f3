package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusErrorKind(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
		client bool
	}{
		{400, KindBadRequest, true},
		{401, KindUnauthorized, true},
		{403, KindForbidden, true},
		{404, KindNotFound, true},
		{409, KindClient, true},
		{499, KindClient, true},
		{500, KindServer, false},
		{503, KindServer, false},
		{599, KindServer, false},
		{302, KindHTTP, false},
		{600, KindHTTP, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := NewStatusError(tt.status, nil)
			assert.Equal(t, tt.want, err.Kind())
			assert.Equal(t, tt.client, err.IsClientError())
		})
	}
}

func TestStatusErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		detail string
		msg    string
	}{
		{"json detail", `{"detail": "Invalid token."}`, "Invalid token.", "401 unauthorized: Invalid token."},
		{"json without detail", `{"name": ["taken"]}`, "", "401 unauthorized"},
		{"plain text", "No such container: abc\n", "No such container: abc", "401 unauthorized: No such container: abc"},
		{"empty", "", "", "401 unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStatusError(401, []byte(tt.raw))
			assert.Equal(t, tt.detail, err.Detail())
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestFieldErrors(t *testing.T) {
	err := NewStatusError(400, []byte(`{"name": ["This field is required.", "Too short."]}`))

	assert.Equal(t, []string{"This field is required.", "Too short."}, err.FieldErrors("name"))
	assert.Nil(t, err.FieldErrors("size"))
	assert.Nil(t, NewStatusError(400, []byte("oops")).FieldErrors("name"))
}

func TestStatusPredicates(t *testing.T) {
	wrapped := fmt.Errorf("get app: %w", NewStatusError(404, nil))

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsUnauthorized(wrapped))
	assert.True(t, IsUnauthorized(NewStatusError(401, nil)))
	assert.True(t, IsBadRequest(NewStatusError(400, nil)))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))

	_, ok := StatusKind(fmt.Errorf("plain"))
	assert.False(t, ok)
}
