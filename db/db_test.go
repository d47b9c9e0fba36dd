package db

import (
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("UNIQUE constraint failed: users.username"), true},
		{errors.New(`duplicate key value violates unique constraint "idx_confirmed_slot"`), true},
		{errors.New("record not found"), false},
	}

	for _, c := range cases {
		if got := IsUniqueViolation(c.err); got != c.want {
			t.Errorf("IsUniqueViolation(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
